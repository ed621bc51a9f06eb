// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for dosemux.
package config

import "github.com/ManuGH/dosemux/internal/validate"

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("LogLevel", cfg.LogLevel)

	v.Directory("DataDir", cfg.DataDir, false)

	v.Range("Optimizer.Workers", cfg.Optimizer.Workers, 1, 256)
	v.NotEmpty("Optimizer.OutputSuffix", cfg.Optimizer.OutputSuffix)
	if cfg.Optimizer.MaxUncompressedBytes <= 0 {
		v.AddError("Optimizer.MaxUncompressedBytes", "must be positive", cfg.Optimizer.MaxUncompressedBytes)
	}

	v.Range("Render.CanvasWidth", cfg.Render.CanvasWidth, 1, 16384)
	v.Range("Render.CanvasHeight", cfg.Render.CanvasHeight, 1, 16384)
	v.Range("Render.Layers", cfg.Render.Layers, 1, 100000)
	v.RangeFloat("Render.BaseExposureMS", cfg.Render.BaseExposureMS, 0, 600000)

	v.ListenAddr("API.ListenAddr", cfg.API.ListenAddr)
	if cfg.API.MaxBodyBytes <= 0 {
		v.AddError("API.MaxBodyBytes", "must be positive", cfg.API.MaxBodyBytes)
	}
	if cfg.API.RateLimitEnabled {
		v.Positive("API.RateLimitRPM", cfg.API.RateLimitRPM)
	}

	v.OneOf("Cache.Backend", cfg.Cache.Backend, []string{"memory", "badger", "redis", "none"})
	switch cfg.Cache.Backend {
	case "badger":
		v.Path("Cache.Dir", cfg.Cache.Dir)
	case "redis":
		v.NotEmpty("Cache.RedisAddr", cfg.Cache.RedisAddr)
		v.Range("Cache.RedisDB", cfg.Cache.RedisDB, 0, 15)
	}
	if cfg.Cache.TTL < 0 {
		v.AddError("Cache.TTL", "cannot be negative", cfg.Cache.TTL.String())
	}

	v.Path("History.Path", cfg.History.Path)

	if cfg.Watch.RatePerSecond <= 0 {
		v.AddError("Watch.RatePerSecond", "must be positive", cfg.Watch.RatePerSecond)
	}
	v.Path("Watch.Inbox", cfg.Watch.Inbox)
	v.Path("Watch.Outbox", cfg.Watch.Outbox)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.RangeFloat("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
