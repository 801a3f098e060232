package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
)

// Invalidation announces a mutation made through one console instance.
type Invalidation struct {
	Origin string `json:"origin"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

func invalidationChannel(ns string) string {
	return "console:" + ns + ":invalidate"
}

func (c *Cache) publish(ctx context.Context, inv Invalidation) {
	if c.redis == nil {
		return
	}
	data, err := sonic.Marshal(inv)
	if err != nil {
		return
	}
	if err := c.redis.Publish(ctx, invalidationChannel(c.ns), data).Err(); err != nil {
		c.log.WithError(err).Warn("publish invalidation failed")
	}
}

// Subscribe listens for mutations made by other console instances sharing
// the namespace and hands them to onChange. It reconnects until ctx ends.
func (c *Cache) Subscribe(ctx context.Context, onChange func(Invalidation)) {
	if c.redis == nil {
		return
	}
	for {
		sub := c.redis.Subscribe(ctx, invalidationChannel(c.ns))
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var inv Invalidation
				if err := sonic.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					c.log.Errorf("unable to parse invalidation: %v", err)
					continue
				}
				if inv.Origin == c.origin {
					continue
				}
				c.epoch.Add(1)
				onChange(inv)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Error("invalidation channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
