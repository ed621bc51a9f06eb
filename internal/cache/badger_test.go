// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/dosemux/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadgerStore(dir, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("artifact"), time.Hour))
	require.NoError(t, s.Put(ctx, "gone", []byte("x"), 0))
	require.NoError(t, s.Delete(ctx, "gone"))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)

	s, err = OpenBadgerStore(dir, 0, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("artifact"), val)

	_, ok, err = s.Get(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	stats := s.Stats()
	assert.Equal(t, 1, stats.CurrentSize)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{"", "memory", "none"} {
		s, err := Open(ctx, config.CacheConfig{Backend: backend}, zerolog.Nop())
		require.NoError(t, err, backend)
		require.NoError(t, s.Close())
	}

	s, err := Open(ctx, config.CacheConfig{Backend: "badger", Dir: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "badger", s.Backend())
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.CacheConfig{Backend: "etcd"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown cache backend")
}
