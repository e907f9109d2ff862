// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cache memoizes extraction and matching results per document.
// Concurrent requests for the same key share one computation, and a failing
// backing store degrades to recomputation rather than failing the caller.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"blackout/internal/logging"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented key/value backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	StoreErrors int64 `json:"store_errors"`
	Shared      int64 `json:"shared"`
}

// Cache fronts a Store with single-flight loading.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *logging.Logger
	group  singleflight.Group

	hits, misses, storeErrors, shared atomic.Int64
}

// New wraps store. A nil logger discards store failures.
func New(store Store, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Cache{store: store, ttl: ttl, logger: logger.WithComponent("cache")}
}

// Fetch returns the cached value for key, or runs compute exactly once per
// key across concurrent callers and stores its result. hit reports whether
// the value came from the store.
//
// The shared computation runs on a context detached from any one caller's
// cancellation, so compute must bound its own run time. A caller whose ctx
// ends returns ctx.Err() without affecting the others.
func (c *Cache) Fetch(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) (value []byte, hit bool, err error) {
	if value, ok := c.lookup(ctx, key); ok {
		return value, true, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		value, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(shared, key, value, c.ttl); err != nil {
			c.storeErrors.Add(1)
			c.logger.Warn("cache store failed", zap.Error(err))
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	}
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		c.hits.Add(1)
		return value, true
	case errors.Is(err, ErrMiss):
		c.misses.Add(1)
	default:
		c.misses.Add(1)
		c.storeErrors.Add(1)
		c.logger.Warn("cache lookup failed", zap.Error(err))
	}
	return nil, false
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		StoreErrors: c.storeErrors.Load(),
		Shared:      c.shared.Load(),
	}
}

// Close releases the backing store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Backends accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Open builds a cache for backend. It returns nil, nil for "none" or "".
func Open(ctx context.Context, backend, redisURL string, ttl time.Duration, logger *logging.Logger) (*Cache, error) {
	switch backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return New(NewMemory(), ttl, logger), nil
	case BackendRedis:
		store, err := NewRedis(ctx, RedisOptions{URL: redisURL})
		if err != nil {
			return nil, err
		}
		return New(store, ttl, logger), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
