// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"

	"github.com/ManuGH/dosemux/internal/config"
	"github.com/rs/zerolog"
)

// DefaultMemoryLimit bounds the memory backend.
const DefaultMemoryLimit = 1 << 30

// Open creates the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.CleanupInterval, DefaultMemoryLimit), nil
	case "badger":
		return OpenBadgerStore(cfg.Dir, cfg.CleanupInterval, logger)
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
	case "none":
		return NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, badger, redis, none)", cfg.Backend)
	}
}
