// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"blackout/internal/resilience"
)

const defaultKeyPrefix = "blackout:scan:"

// RedisOptions configures NewRedis. Zero durations keep the go-redis
// defaults.
type RedisOptions struct {
	URL          string
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Retry        *resilience.RetryConfig
	Breaker      *resilience.CircuitBreakerConfig
}

// Redis is a Store backed by a Redis server. Calls are retried on transient
// errors and short-circuited while the breaker is open.
type Redis struct {
	client  *redis.Client
	prefix  string
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewRedis connects to opts.URL and verifies the connection with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opts.DialTimeout > 0 {
		redisOpts.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		redisOpts.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}

	client := redis.NewClient(redisOpts)
	r := NewRedisFromClient(client, opts)

	if err := resilience.RetryWithBackoff(ctx, r.retry, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return r, nil
}

// NewRedisFromClient wraps an existing client. opts.URL and the timeouts
// are ignored.
func NewRedisFromClient(client *redis.Client, opts RedisOptions) *Redis {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	retry := resilience.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	breakerCfg := resilience.DefaultCircuitBreakerConfig("redis-cache")
	if opts.Breaker != nil {
		breakerCfg = *opts.Breaker
	}
	return &Redis{
		client:  client,
		prefix:  prefix,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	miss := false
	err := resilience.RetryWithCircuitBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) error {
		b, err := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		value = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if miss {
		return nil, ErrMiss
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := resilience.RetryWithCircuitBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) error {
		return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Health pings the server without going through the breaker.
func (r *Redis) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// BreakerState reports the state of the guarding circuit breaker.
func (r *Redis) BreakerState() resilience.CircuitBreakerState {
	return r.breaker.GetState()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
