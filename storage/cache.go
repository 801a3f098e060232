// Package storage caches planning API reads in Redis.
package storage

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"event-planner/apiclient"
)

// Cache wraps a Remote with a Redis read-through cache of GET responses.
// Every successful mutation evicts the namespace, since one write may change
// several aggregates the API recomputes.
type Cache struct {
	base   apiclient.Remote
	redis  *redis.Client
	ttl    time.Duration
	ns     string
	origin string
	group  singleflight.Group
	epoch  atomic.Uint64 // mutations seen by this instance
	log    *log.Logger
}

// NewCache creates a caching Remote using the provided Redis client and TTL.
// A nil client or a zero TTL disables caching.
func NewCache(base apiclient.Remote, client *redis.Client, ttl time.Duration, namespace string, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base remote is nil")
	}
	if logger == nil {
		panic("Logger is not initialized")
	}
	if ttl < 0 {
		ttl = 0
	}
	if namespace == "" {
		namespace = "default"
	}
	return &Cache{
		base:   base,
		redis:  client,
		ttl:    ttl,
		ns:     namespace,
		origin: uuid.NewString(),
		log:    logger,
	}
}

// Get serves path from the cache or the API. A response fetched across a
// mutation is returned but not stored, and reads started after a mutation
// never join a fetch that began before it.
func (c *Cache) Get(ctx context.Context, path string) (apiclient.Response, error) {
	if resp, ok := c.load(ctx, path); ok {
		return resp, nil
	}

	gen, storable := c.generation(ctx)
	v, err, _ := c.group.Do(path+"@"+gen, func() (any, error) {
		resp, err := c.base.Get(ctx, path)
		if err != nil {
			return resp, err
		}
		if storable {
			c.storeAt(ctx, gen, path, resp)
		}
		return resp, nil
	})
	resp, _ := v.(apiclient.Response)
	return resp, err
}

func (c *Cache) Post(ctx context.Context, path string, body any) (apiclient.Response, error) {
	resp, err := c.base.Post(ctx, path, body)
	if err != nil {
		return resp, err
	}
	c.invalidate(ctx, "POST", path)
	return resp, nil
}

func (c *Cache) Patch(ctx context.Context, path string, body any) (apiclient.Response, error) {
	resp, err := c.base.Patch(ctx, path, body)
	if err != nil {
		return resp, err
	}
	c.invalidate(ctx, "PATCH", path)
	return resp, nil
}

func (c *Cache) Delete(ctx context.Context, path string) (apiclient.Response, error) {
	resp, err := c.base.Delete(ctx, path)
	if err != nil {
		return resp, err
	}
	c.invalidate(ctx, "DELETE", path)
	return resp, nil
}

func (c *Cache) load(ctx context.Context, path string) (apiclient.Response, bool) {
	if c.redis == nil || c.ttl == 0 {
		return apiclient.Response{}, false
	}
	key := responseKey(c.ns, path)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the API without failing.
			c.log.WithError(err).WithField("key", key).Debug("response cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return apiclient.Response{}, false
	}
	var resp apiclient.Response
	if err := sonic.Unmarshal(data, &resp); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return apiclient.Response{}, false
	}
	return resp, true
}

func (c *Cache) store(ctx context.Context, path string, resp apiclient.Response) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(resp)
	if err != nil {
		return
	}
	key := responseKey(c.ns, path)
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, indexKey(c.ns), key)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.WithError(err).WithField("key", key).Debug("response cache write failed")
	}
}

// generation identifies the namespace's cache epoch: the mutations this
// instance made or heard of, and the counter other instances bump in Redis.
// It reports false when the counter cannot be read.
func (c *Cache) generation(ctx context.Context) (string, bool) {
	local := strconv.FormatUint(c.epoch.Load(), 10)
	if c.redis == nil || c.ttl == 0 {
		return local, false
	}
	remote, err := c.redis.Get(ctx, generationKey(c.ns)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.WithError(err).Debug("cache generation read failed")
		return local, false
	}
	return local + "." + strconv.FormatInt(remote, 10), true
}

// storeAt stores resp only while the generation is still gen. An entry
// written while a mutation evicts the namespace is removed again.
func (c *Cache) storeAt(ctx context.Context, gen, path string, resp apiclient.Response) {
	if now, ok := c.generation(ctx); !ok || now != gen {
		return
	}
	c.store(ctx, path, resp)
	if now, ok := c.generation(ctx); !ok || now != gen {
		_ = c.redis.Del(ctx, responseKey(c.ns, path)).Err()
	}
}

// Evict drops every cached response of the namespace.
func (c *Cache) Evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	idx := indexKey(c.ns)
	keys, err := c.redis.SMembers(ctx, idx).Result()
	if err != nil {
		c.log.WithError(err).Warn("response cache eviction failed")
		return
	}
	_, _ = c.redis.Del(ctx, append(keys, idx)...).Result()
}

func (c *Cache) invalidate(ctx context.Context, method, path string) {
	c.epoch.Add(1)
	if c.redis != nil {
		if err := c.redis.Incr(ctx, generationKey(c.ns)).Err(); err != nil {
			c.log.WithError(err).Warn("cache generation bump failed")
		}
	}
	c.Evict(ctx)
	c.publish(ctx, Invalidation{Origin: c.origin, Method: method, Path: path})
}

func responseKey(ns, path string) string {
	return "resp:" + ns + ":" + path
}

func indexKey(ns string) string {
	return "resp:" + ns + ":index"
}

func generationKey(ns string) string {
	return "resp:" + ns + ":generation"
}
