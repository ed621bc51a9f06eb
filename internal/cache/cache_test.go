// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryStore_GetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Put(ctx, "key1", []byte("value1"), 5*time.Minute))

	val, ok, err := s.Get(ctx, "key1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value1"), val)

	_, ok, err = s.Get(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := NewMemoryStore(0, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, s.Put(ctx, "forever", []byte("v"), 0))

	_, ok, _ := s.Get(ctx, "short")
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = s.Get(ctx, "short")
	assert.False(t, ok, "expected key to be expired")
	_, ok, _ = s.Get(ctx, "forever")
	assert.True(t, ok)

	assert.Equal(t, 1, s.deleteExpired())
	assert.Equal(t, 1, s.Stats().CurrentSize)
}

func TestMemoryStore_DeleteAndStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 0)

	require.NoError(t, s.Put(ctx, "a", []byte("12345"), time.Minute))
	require.NoError(t, s.Put(ctx, "a", []byte("123"), time.Minute))
	_, _, _ = s.Get(ctx, "a")
	_, _, _ = s.Get(ctx, "b")

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(3), stats.Bytes)
	assert.Equal(t, 1, stats.CurrentSize)

	require.NoError(t, s.Delete(ctx, "a"))
	assert.Zero(t, s.Stats().Bytes)
}

func TestMemoryStore_EvictsToLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, 10)

	require.NoError(t, s.Put(ctx, "soon", []byte("12345"), time.Minute))
	require.NoError(t, s.Put(ctx, "later", []byte("12345"), time.Hour))
	require.NoError(t, s.Put(ctx, "new", []byte("123"), 2*time.Hour))

	_, ok, _ := s.Get(ctx, "soon")
	assert.False(t, ok, "entry closest to expiry is evicted")
	_, ok, _ = s.Get(ctx, "later")
	assert.True(t, ok)
	assert.Equal(t, int64(1), s.Stats().Evictions)
	assert.LessOrEqual(t, s.Stats().Bytes, int64(10))
}

func TestMemoryStore_JanitorStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	s := NewMemoryStore(10*time.Millisecond, 0)
	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Millisecond))

	require.Eventually(t, func() bool { return s.Stats().CurrentSize == 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(ctx, "k", nil, 0), ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Millisecond, 1<<10)
	t.Cleanup(func() { _ = s.Close() })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", j%10)
				_ = s.Put(ctx, key, []byte("value"), time.Minute)
				_, _, _ = s.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(1000), s.Stats().Sets)
}

func TestNoopStore(t *testing.T) {
	ctx := context.Background()
	s := NewNoopStore()
	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "none", s.Backend())
	assert.Equal(t, Stats{}, s.Stats())
}
