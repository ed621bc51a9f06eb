// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/dosemux/internal/api"
	"github.com/ManuGH/dosemux/internal/cache"
	"github.com/ManuGH/dosemux/internal/config"
	"github.com/ManuGH/dosemux/internal/daemon"
	"github.com/ManuGH/dosemux/internal/health"
	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/ManuGH/dosemux/internal/log"
	"github.com/ManuGH/dosemux/internal/optimizer"
	"github.com/ManuGH/dosemux/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const retentionInterval = time.Hour

func newServeCmd(g *globalOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, job history and optional watch folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := g.load(cmd, false)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.API.ListenAddr = listen
			}
			logger := log.WithComponent("daemon")
			logger.Info().
				Str(log.FieldEvent, "config.loaded").
				Str("source", sourceLabel(path)).
				Msg("loaded configuration")

			mgr, err := buildDaemon(cmd.Context(), cfg, path, logger)
			if err != nil {
				logger.Error().Err(err).Str(log.FieldEvent, "startup.failed").Msg("startup failed")
				return err
			}
			return mgr.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override the API listen address")
	return cmd
}

type namedCloser struct {
	name string
	fn   daemon.ShutdownHook
}

// buildDaemon wires storage, the API and background workers. Resources opened
// before a failure are released before returning.
func buildDaemon(ctx context.Context, cfg config.AppConfig, configPath string, logger zerolog.Logger) (mgr daemon.Manager, err error) {
	var closers []namedCloser
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].fn(context.WithoutCancel(ctx))
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	closers = append(closers, namedCloser{"telemetry", tp.Shutdown})

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := cache.Open(ctx, cfg.Cache, log.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	closers = append(closers, namedCloser{"cache", func(context.Context) error { return store.Close() }})

	history, err := jobs.OpenHistory(ctx, cfg.History.Path)
	if err != nil {
		return nil, err
	}
	closers = append(closers, namedCloser{"history", func(context.Context) error { return history.Close() }})

	runner := jobs.NewRunner(jobs.RunnerConfig{
		Optimizer: optimizer.Options{
			Workers:      cfg.Optimizer.Workers,
			OutputSuffix: cfg.Optimizer.OutputSuffix,
		},
		CacheTTL:             cfg.Cache.TTL,
		MaxUncompressedBytes: cfg.Optimizer.MaxUncompressedBytes,
	}, store, history)

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("history", 0, history.Ping))
	hm.RegisterChecker(health.NewPingChecker("cache_"+store.Backend(), 0, store.Ping))
	hm.RegisterChecker(health.NewDirChecker("data_dir", cfg.DataDir))

	workers := []daemon.Worker{daemon.RetentionWorker(history, cfg.History.Retention, retentionInterval)}

	var watcher *jobs.Watcher
	if cfg.Watch.Inbox != "" {
		watcher, err = jobs.NewWatcher(jobs.WatcherConfig{
			Inbox:         cfg.Watch.Inbox,
			Outbox:        cfg.Watch.Outbox,
			RatePerSecond: cfg.Watch.RatePerSecond,
			Debounce:      cfg.Watch.Debounce,
			ScanExisting:  true,
			OutputSuffix:  cfg.Optimizer.OutputSuffix,
		}, runner)
		if err != nil {
			return nil, err
		}
		hm.RegisterChecker(health.NewDirChecker("outbox", cfg.Watch.Outbox))
		workers = append(workers, daemon.Worker{Name: "watch", Run: watcher.Run})
	}

	if configPath != "" {
		loader := config.NewLoader(configPath, cfg.Version)
		holder := config.NewHolder(cfg, loader, configPath)
		workers = append(workers, configReloadWorker(holder, watcher))
	}

	rpm := 0
	if cfg.API.RateLimitEnabled {
		rpm = cfg.API.RateLimitRPM
	}
	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.LogService
	}
	srv := api.New(api.Config{
		MaxBodyBytes:         cfg.API.MaxBodyBytes,
		MaxUncompressedBytes: cfg.Optimizer.MaxUncompressedBytes,
		RateLimitRPM:         rpm,
		TracingService:       tracing,
		RenderLayers:         cfg.Render.Layers,
		RenderBaseExposureMS: cfg.Render.BaseExposureMS,
		OutputSuffix:         cfg.Optimizer.OutputSuffix,
	}, api.Deps{
		Optimizer: runner,
		History:   history,
		Health:    hm,
	})

	mgr, err = daemon.NewManager(cfg.API, daemon.Deps{
		Logger:     logger,
		APIHandler: srv.Handler(),
		Workers:    workers,
	})
	if err != nil {
		return nil, err
	}
	for _, c := range closers {
		mgr.RegisterShutdownHook(c.name, c.fn)
	}
	return mgr, nil
}

// configReloadWorker watches the config file and applies the settings that
// can change at runtime: log level and watch rate.
func configReloadWorker(holder *config.Holder, watcher *jobs.Watcher) daemon.Worker {
	return daemon.Worker{
		Name: "config-reload",
		Run: func(ctx context.Context) error {
			updates := make(chan config.AppConfig, 1)
			holder.Subscribe(updates)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return holder.Watch(gctx) })
			g.Go(func() error {
				logger := log.WithComponent("config")
				for {
					select {
					case <-gctx.Done():
						return nil
					case cfg := <-updates:
						if err := log.SetLevel(cfg.LogLevel); err != nil {
							logger.Warn().Err(err).Msg("ignoring invalid log level")
						}
						if watcher != nil {
							watcher.SetRate(cfg.Watch.RatePerSecond)
						}
					}
				}
			})
			return g.Wait()
		},
	}
}
