package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper records idempotency keys of mutation requests in Redis so every
// console instance sharing the namespace refuses a replayed request.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
	ns     string
}

func NewDeduper(client *redis.Client, ttl time.Duration, namespace string) *Deduper {
	if client == nil {
		panic("storage.NewDeduper: redis client is nil")
	}
	if namespace == "" {
		namespace = "default"
	}
	return &Deduper{client: client, ttl: ttl, ns: namespace}
}

func (d *Deduper) key(k string) string {
	return "idem:" + d.ns + ":" + k
}

// Claim records k. It returns false when k was already claimed.
func (d *Deduper) Claim(ctx context.Context, k string) (bool, error) {
	return d.client.SetNX(ctx, d.key(k), 1, d.ttl).Result()
}

// Release forgets k so the request may be retried after a failure.
func (d *Deduper) Release(ctx context.Context, k string) error {
	return d.client.Del(ctx, d.key(k)).Err()
}
