// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/dosemux/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDebounce is the quiet period after the last file event
// before a reload runs.
const DefaultReloadDebounce = 500 * time.Millisecond

// Holder holds configuration with atomic reloading capability. Only
// settings read per use (log level, watch rate) take effect on reload;
// listen addresses and backends need a restart.
type Holder struct {
	mu       sync.RWMutex
	current  AppConfig
	loader   *Loader
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	listenMu  sync.RWMutex
	listeners []chan<- AppConfig
}

// NewHolder creates a holder with the initial config. path is the YAML file
// to watch; empty disables watching.
func NewHolder(initial AppConfig, loader *Loader, path string) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		path:     path,
		debounce: DefaultReloadDebounce,
		logger:   log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the configuration. On failure the previous
// configuration stays active.
func (h *Holder) Reload() error {
	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}
	if err := Validate(newCfg); err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "config.validation_failed").Msg("new configuration failed validation")
		return fmt.Errorf("validate config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.logChanges(old, newCfg)
	h.notify(newCfg)
	h.logger.Info().Str(log.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Subscribe registers ch for successful reloads. Sends never block; a full
// channel misses the update.
func (h *Holder) Subscribe(ch chan<- AppConfig) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg AppConfig) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str(log.FieldEvent, "config.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
}

// Watch reloads the configuration whenever the file changes, until ctx is
// cancelled. It watches the parent directory so editors that replace the
// file are handled.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	target := filepath.Clean(h.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str(log.FieldEvent, "config.watcher_started").Str(log.FieldPath, target).Msg("watching config file for changes")

	timer := time.NewTimer(h.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			timer.Reset(h.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_error").Msg("config watcher error")
		case <-timer.C:
			_ = h.Reload()
		}
	}
}

func (h *Holder) logChanges(old, newCfg AppConfig) {
	if old.LogLevel != newCfg.LogLevel {
		h.logger.Info().Str("old", old.LogLevel).Str("new", newCfg.LogLevel).Msg("config changed: LogLevel")
	}
	if old.Watch.RatePerSecond != newCfg.Watch.RatePerSecond {
		h.logger.Info().Float64("old", old.Watch.RatePerSecond).Float64("new", newCfg.Watch.RatePerSecond).Msg("config changed: Watch.RatePerSecond")
	}
	if old.API.ListenAddr != newCfg.API.ListenAddr {
		h.logger.Warn().Str("old", old.API.ListenAddr).Str("new", newCfg.API.ListenAddr).Msg("config changed: API.ListenAddr (restart required)")
	}
	if old.Cache.Backend != newCfg.Cache.Backend {
		h.logger.Warn().Str("old", old.Cache.Backend).Str("new", newCfg.Cache.Backend).Msg("config changed: Cache.Backend (restart required)")
	}
}
