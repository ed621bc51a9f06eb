// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:    "/tmp/dosemux",
		LogLevel:   "info",
		LogService: "dosemux",
		Optimizer: OptimizerConfig{
			Workers:              4,
			OutputSuffix:         "_optimized",
			MaxUncompressedBytes: 1 << 30,
		},
		Render: RenderConfig{
			CanvasWidth:    2560,
			CanvasHeight:   1600,
			Layers:         1,
			BaseExposureMS: 2000,
		},
		API: APIConfig{
			ListenAddr:       ":8088",
			MaxBodyBytes:     256 << 20,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     5 * time.Minute,
			ShutdownTimeout:  15 * time.Second,
			RateLimitEnabled: true,
			RateLimitRPM:     120,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			TTL:             24 * time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		History: HistoryConfig{
			Retention: 30 * 24 * time.Hour,
		},
		Watch: WatchConfig{
			RatePerSecond: 2,
			Debounce:      500 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// mergeFileConfig copies every field the file sets onto cfg.
func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	if f == nil {
		return
	}
	setIf(&cfg.DataDir, f.DataDir)
	setIf(&cfg.LogLevel, f.LogLevel)
	setIf(&cfg.LogService, f.LogService)

	if o := f.Optimizer; o != nil {
		setIf(&cfg.Optimizer.Workers, o.Workers)
		setIf(&cfg.Optimizer.OutputSuffix, o.OutputSuffix)
		setIf(&cfg.Optimizer.MaxUncompressedBytes, o.MaxUncompressedBytes)
	}
	if r := f.Render; r != nil {
		setIf(&cfg.Render.CanvasWidth, r.CanvasWidth)
		setIf(&cfg.Render.CanvasHeight, r.CanvasHeight)
		setIf(&cfg.Render.Layers, r.Layers)
		setIf(&cfg.Render.BaseExposureMS, r.BaseExposureMS)
	}
	if a := f.API; a != nil {
		setIf(&cfg.API.ListenAddr, a.ListenAddr)
		setIf(&cfg.API.MaxBodyBytes, a.MaxBodyBytes)
		setIf(&cfg.API.ReadTimeout, a.ReadTimeout)
		setIf(&cfg.API.WriteTimeout, a.WriteTimeout)
		setIf(&cfg.API.ShutdownTimeout, a.ShutdownTimeout)
		setIf(&cfg.API.RateLimitEnabled, a.RateLimitEnabled)
		setIf(&cfg.API.RateLimitRPM, a.RateLimitRPM)
	}
	if c := f.Cache; c != nil {
		setIf(&cfg.Cache.Backend, c.Backend)
		setIf(&cfg.Cache.TTL, c.TTL)
		setIf(&cfg.Cache.CleanupInterval, c.CleanupInterval)
		setIf(&cfg.Cache.Dir, c.Dir)
		setIf(&cfg.Cache.RedisAddr, c.RedisAddr)
		setIf(&cfg.Cache.RedisPassword, c.RedisPassword)
		setIf(&cfg.Cache.RedisDB, c.RedisDB)
	}
	if h := f.History; h != nil {
		setIf(&cfg.History.Path, h.Path)
		setIf(&cfg.History.Retention, h.Retention)
	}
	if w := f.Watch; w != nil {
		setIf(&cfg.Watch.Inbox, w.Inbox)
		setIf(&cfg.Watch.Outbox, w.Outbox)
		setIf(&cfg.Watch.RatePerSecond, w.RatePerSecond)
		setIf(&cfg.Watch.Debounce, w.Debounce)
	}
	if t := f.Telemetry; t != nil {
		setIf(&cfg.Telemetry.Enabled, t.Enabled)
		setIf(&cfg.Telemetry.Exporter, t.Exporter)
		setIf(&cfg.Telemetry.Endpoint, t.Endpoint)
		setIf(&cfg.Telemetry.Environment, t.Environment)
		setIf(&cfg.Telemetry.SamplingRate, t.SamplingRate)
	}
}
