package store

import (
	"context"
	"errors"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cached is a read-through cache in front of another KV.
// Writes go to the backend first and then invalidate the cached entry, so
// a failed write never leaves a stale value behind. Misses are not cached.
//
// Only writes made through this Cached invalidate it. When other processes
// share the backend, work that writes based on what it reads must use
// Fresh.
type Cached struct {
	base  KV
	cache *gocache.Cache
}

// NewCached wraps base with an expiring cache.
// ttl <= 0 disables expiry.
func NewCached(base KV, ttl time.Duration) *Cached {
	exp := ttl
	cleanup := 2 * ttl
	if ttl <= 0 {
		exp = gocache.NoExpiration
		cleanup = 0
	}
	return &Cached{base: base, cache: gocache.New(exp, cleanup)}
}

var (
	_ KV      = (*Cached)(nil)
	_ Batcher = (*Cached)(nil)
)

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		return slices.Clone(v.([]byte)), nil
	}
	v, err := c.base.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, slices.Clone(v))
	return v, nil
}

func (c *Cached) Contains(ctx context.Context, key string) (bool, error) {
	if _, ok := c.cache.Get(key); ok {
		return true, nil
	}
	return c.base.Contains(ctx, key)
}

func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	defer c.cache.Delete(key)
	return c.base.Set(ctx, key, value)
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	defer c.cache.Delete(key)
	return c.base.Delete(ctx, key)
}

// Apply forwards muts to the backend and drops every touched key.
func (c *Cached) Apply(ctx context.Context, muts []Mutation) error {
	defer func() {
		for _, m := range muts {
			c.cache.Delete(m.Key)
		}
	}()
	return Apply(ctx, c.base, muts)
}

// Fresh returns a view of c that reads from the backend, refreshing the
// cache with what it finds, and writes through c.
func (c *Cached) Fresh() KV {
	return freshView{c}
}

type freshView struct {
	c *Cached
}

var (
	_ KV      = freshView{}
	_ Batcher = freshView{}
)

func (f freshView) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := f.c.base.Get(ctx, key)
	switch {
	case err == nil:
		f.c.cache.SetDefault(key, slices.Clone(v))
	case IsNotFound(err):
		f.c.cache.Delete(key)
	}
	return v, err
}

func (f freshView) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := f.c.base.Contains(ctx, key)
	if err == nil && !ok {
		f.c.cache.Delete(key)
	}
	return ok, err
}

func (f freshView) Set(ctx context.Context, key string, value []byte) error {
	return f.c.Set(ctx, key, value)
}

func (f freshView) Delete(ctx context.Context, key string) error {
	return f.c.Delete(ctx, key)
}

func (f freshView) Apply(ctx context.Context, muts []Mutation) error {
	return f.c.Apply(ctx, muts)
}

// Flush empties the cache without touching the backend.
func (c *Cached) Flush() {
	c.cache.Flush()
}

// ItemCount reports cached entries, including expired ones not yet cleaned.
func (c *Cached) ItemCount() int {
	return c.cache.ItemCount()
}

// IsNotFound reports whether err means a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
