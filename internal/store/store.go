package store

import (
	"context"
	"sync"
	"time"

	redis "github.com/go-redis/redis/v8"
)

// Store is the injected key-value surface used for classifier state such as
// the flow-state hysteresis cache. Keys are expected to carry a workspace
// partition prefix so tenants never share entries.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

type memory struct {
	mu sync.Mutex
	m  map[string]entry
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory returns a process-local store. Suitable for tests and
// single-tenant tooling only.
func NewMemory() Store { return &memory{m: make(map[string]entry)} }

func (c *memory) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

type redisStore struct {
	r       *redis.Client
	timeout time.Duration
}

// NewRedis wraps a redis client as a Store. Calls are bounded by a short
// internal timeout so a slow redis never stalls an evaluation path.
func NewRedis(client *redis.Client) Store {
	return &redisStore{r: client, timeout: 500 * time.Millisecond}
}

func (r *redisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisStore) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_ = r.r.Set(ctx, key, val, ttl).Err()
}
