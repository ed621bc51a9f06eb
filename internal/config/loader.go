// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	resolveDerivedPaths(&cfg)

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// resolveDerivedPaths fills paths that default to locations under DataDir.
func resolveDerivedPaths(cfg *AppConfig) {
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.DataDir, "cache")
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.DataDir, "history.db")
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes YAML config bytes strictly.
func ParseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString("DOSEMUX_DATA", cfg.DataDir)
	cfg.LogLevel = l.envString("DOSEMUX_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("DOSEMUX_LOG_SERVICE", cfg.LogService)

	cfg.Optimizer.Workers = l.envInt("DOSEMUX_OPTIMIZER_WORKERS", cfg.Optimizer.Workers)
	cfg.Optimizer.OutputSuffix = l.envString("DOSEMUX_OUTPUT_SUFFIX", cfg.Optimizer.OutputSuffix)
	cfg.Optimizer.MaxUncompressedBytes = l.envInt64("DOSEMUX_MAX_UNCOMPRESSED_BYTES", cfg.Optimizer.MaxUncompressedBytes)

	cfg.Render.CanvasWidth = l.envInt("DOSEMUX_CANVAS_WIDTH", cfg.Render.CanvasWidth)
	cfg.Render.CanvasHeight = l.envInt("DOSEMUX_CANVAS_HEIGHT", cfg.Render.CanvasHeight)
	cfg.Render.Layers = l.envInt("DOSEMUX_RENDER_LAYERS", cfg.Render.Layers)
	cfg.Render.BaseExposureMS = l.envFloat("DOSEMUX_BASE_EXPOSURE_MS", cfg.Render.BaseExposureMS)

	cfg.API.ListenAddr = l.envString("DOSEMUX_LISTEN", cfg.API.ListenAddr)
	cfg.API.MaxBodyBytes = l.envInt64("DOSEMUX_MAX_BODY_BYTES", cfg.API.MaxBodyBytes)
	cfg.API.ReadTimeout = l.envDuration("DOSEMUX_READ_TIMEOUT", cfg.API.ReadTimeout)
	cfg.API.WriteTimeout = l.envDuration("DOSEMUX_WRITE_TIMEOUT", cfg.API.WriteTimeout)
	cfg.API.ShutdownTimeout = l.envDuration("DOSEMUX_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)
	cfg.API.RateLimitEnabled = l.envBool("DOSEMUX_RATELIMIT_ENABLED", cfg.API.RateLimitEnabled)
	cfg.API.RateLimitRPM = l.envInt("DOSEMUX_RATELIMIT_RPM", cfg.API.RateLimitRPM)

	cfg.Cache.Backend = l.envString("DOSEMUX_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = l.envDuration("DOSEMUX_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.CleanupInterval = l.envDuration("DOSEMUX_CACHE_CLEANUP_INTERVAL", cfg.Cache.CleanupInterval)
	cfg.Cache.Dir = l.envString("DOSEMUX_CACHE_DIR", cfg.Cache.Dir)
	cfg.Cache.RedisAddr = l.envString("DOSEMUX_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString("DOSEMUX_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt("DOSEMUX_REDIS_DB", cfg.Cache.RedisDB)

	cfg.History.Path = l.envString("DOSEMUX_HISTORY_PATH", cfg.History.Path)
	cfg.History.Retention = l.envDuration("DOSEMUX_HISTORY_RETENTION", cfg.History.Retention)

	cfg.Watch.Inbox = l.envString("DOSEMUX_WATCH_INBOX", cfg.Watch.Inbox)
	cfg.Watch.Outbox = l.envString("DOSEMUX_WATCH_OUTBOX", cfg.Watch.Outbox)
	cfg.Watch.RatePerSecond = l.envFloat("DOSEMUX_WATCH_RATE", cfg.Watch.RatePerSecond)
	cfg.Watch.Debounce = l.envDuration("DOSEMUX_WATCH_DEBOUNCE", cfg.Watch.Debounce)

	cfg.Telemetry.Enabled = l.envBool("DOSEMUX_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("DOSEMUX_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("DOSEMUX_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = l.envString("DOSEMUX_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = l.envFloat("DOSEMUX_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}
