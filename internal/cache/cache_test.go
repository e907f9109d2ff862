// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackout/internal/resilience"
)

func TestMemory_SetGetExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got[0] = 'x'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("v"), again, "returned slices must not alias the stored value")

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_SetSweepsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "old", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "forever", []byte("2"), 0))
	now = now.Add(time.Hour)
	require.NoError(t, m.Set(ctx, "new", []byte("3"), time.Second))

	assert.Equal(t, 2, m.Len())
	_, err := m.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	assert.ErrorIs(t, m.Set(ctx, "k", nil, 0), context.Canceled)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache_FetchMissThenHit(t *testing.T) {
	c := New(NewMemory(), time.Minute, nil)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("result"), nil
	}

	v, hit, err := c.Fetch(ctx, "doc", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "result", string(v))

	v, hit, err = c.Fetch(ctx, "doc", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "result", string(v))
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_ComputeErrorNotStored(t *testing.T) {
	store := NewMemory()
	c := New(store, time.Minute, nil)
	boom := errors.New("boom")

	_, _, err := c.Fetch(context.Background(), "doc", func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())
}

func TestCache_SingleWriterPerKey(t *testing.T) {
	c := New(NewMemory(), time.Minute, nil)
	release := make(chan struct{})
	var computes atomic.Int32

	compute := func(context.Context) ([]byte, error) {
		computes.Add(1)
		<-release
		return []byte("once"), nil
	}

	const callers = 8
	var started, wg sync.WaitGroup
	started.Add(callers)
	wg.Add(callers)
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			started.Done()
			v, _, err := c.Fetch(context.Background(), "same", compute)
			if err == nil {
				results[i] = string(v)
			}
		}()
	}
	started.Wait()
	// Give every caller time to join the in-flight computation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), computes.Load())
	for _, r := range results {
		assert.Equal(t, "once", r)
	}
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, error)               { return nil, f.err }
func (f failingStore) Set(context.Context, string, []byte, time.Duration) error { return f.err }
func (f failingStore) Close() error                                             { return nil }

func TestCache_StoreFailureDegradesToCompute(t *testing.T) {
	c := New(failingStore{err: errors.New("backend down")}, time.Minute, nil)

	v, hit, err := c.Fetch(context.Background(), "doc", func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", string(v))
	assert.Equal(t, int64(2), c.Stats().StoreErrors)
}

func TestCache_FetchHonoursContext(t *testing.T) {
	c := New(NewMemory(), time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, _, err := c.Fetch(ctx, "slow", func(context.Context) ([]byte, error) {
		<-block
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := New(NewMemory(), time.Minute, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	var computes atomic.Int32
	var computeErr atomic.Value

	compute := func(ctx context.Context) ([]byte, error) {
		computes.Add(1)
		close(entered)
		<-release
		computeErr.Store(fmt.Sprint(ctx.Err()))
		return []byte("shared"), nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := c.Fetch(ctxA, "k", compute)
		errA <- err
	}()
	<-entered

	type outcome struct {
		value []byte
		err   error
	}
	resB := make(chan outcome, 1)
	go func() {
		v, _, err := c.Fetch(context.Background(), "k", compute)
		resB <- outcome{v, err}
	}()
	// Let B join the in-flight computation before A goes away.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, "shared", string(got.value))
	assert.Equal(t, int32(1), computes.Load())
	assert.Equal(t, "<nil>", computeErr.Load(), "the shared computation outlives a cancelled caller")

	v, hit, err := c.Fetch(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "shared", string(v))
}

func TestOpen(t *testing.T) {
	c, err := Open(context.Background(), BackendNone, "", time.Minute, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = Open(context.Background(), BackendMemory, "", time.Minute, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NoError(t, c.Close())

	_, err = Open(context.Background(), "memcached", "", time.Minute, nil)
	assert.Error(t, err)

	_, err = Open(context.Background(), BackendRedis, "", time.Minute, nil)
	assert.Error(t, err)
}

func TestRedis_UnreachableServerOpensBreaker(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	noRetry := resilience.RetryConfig{MaxRetries: 0}
	breaker := resilience.DefaultCircuitBreakerConfig("test")
	breaker.FailureThreshold = 2
	store := NewRedisFromClient(client, RedisOptions{Retry: &noRetry, Breaker: &breaker})
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := store.Get(ctx, "k")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMiss)
	}
	assert.Equal(t, resilience.StateOpen, store.BreakerState())

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	c := New(store, time.Minute, nil)
	v, _, err := c.Fetch(ctx, "k", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", string(v))
}
