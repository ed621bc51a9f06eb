// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the effective, fully resolved configuration.
type AppConfig struct {
	Version    string `yaml:"-" json:"-"`
	DataDir    string `yaml:"dataDir" json:"dataDir"`
	LogLevel   string `yaml:"logLevel" json:"logLevel"`
	LogService string `yaml:"logService" json:"logService"`

	Optimizer OptimizerConfig `yaml:"optimizer" json:"optimizer"`
	Render    RenderConfig    `yaml:"render" json:"render"`
	API       APIConfig       `yaml:"api" json:"api"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	History   HistoryConfig   `yaml:"history" json:"history"`
	Watch     WatchConfig     `yaml:"watch" json:"watch"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// OptimizerConfig controls print file optimization.
type OptimizerConfig struct {
	// Workers bounds how many layers are optimized concurrently.
	Workers int `yaml:"workers" json:"workers"`
	// OutputSuffix is appended to the input stem when no output path is given.
	OutputSuffix string `yaml:"outputSuffix" json:"outputSuffix"`
	// MaxUncompressedBytes bounds the decompressed size of an input archive.
	MaxUncompressedBytes int64 `yaml:"maxUncompressedBytes" json:"maxUncompressedBytes"`
}

// RenderConfig holds defaults for rendering layouts into print files.
type RenderConfig struct {
	CanvasWidth    int     `yaml:"canvasWidth" json:"canvasWidth"`
	CanvasHeight   int     `yaml:"canvasHeight" json:"canvasHeight"`
	Layers         int     `yaml:"layers" json:"layers"`
	BaseExposureMS float64 `yaml:"baseExposureMs" json:"baseExposureMs"`
}

// APIConfig configures the HTTP service.
type APIConfig struct {
	ListenAddr       string        `yaml:"listenAddr" json:"listenAddr"`
	MaxBodyBytes     int64         `yaml:"maxBodyBytes" json:"maxBodyBytes"`
	ReadTimeout      time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout     time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	RateLimitEnabled bool          `yaml:"rateLimitEnabled" json:"rateLimitEnabled"`
	RateLimitRPM     int           `yaml:"rateLimitRpm" json:"rateLimitRpm"`
}

// CacheConfig selects and configures the artifact cache backend.
type CacheConfig struct {
	Backend         string        `yaml:"backend" json:"backend"` // memory|badger|redis|none
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval" json:"cleanupInterval"`
	Dir             string        `yaml:"dir" json:"dir"`
	RedisAddr       string        `yaml:"redisAddr" json:"redisAddr"`
	RedisPassword   string        `yaml:"redisPassword" json:"-"`
	RedisDB         int           `yaml:"redisDb" json:"redisDb"`
}

// HistoryConfig configures the SQLite job history.
type HistoryConfig struct {
	Path      string        `yaml:"path" json:"path"`
	Retention time.Duration `yaml:"retention" json:"retention"`
}

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	Inbox         string        `yaml:"inbox" json:"inbox"`
	Outbox        string        `yaml:"outbox" json:"outbox"`
	RatePerSecond float64       `yaml:"ratePerSecond" json:"ratePerSecond"`
	Debounce      time.Duration `yaml:"debounce" json:"debounce"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint" json:"endpoint"`
	Environment  string  `yaml:"environment" json:"environment"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// FileConfig mirrors AppConfig for YAML files. Pointer fields distinguish
// "not set" from zero values so a file only overrides what it names.
type FileConfig struct {
	DataDir    *string `yaml:"dataDir"`
	LogLevel   *string `yaml:"logLevel"`
	LogService *string `yaml:"logService"`

	Optimizer *struct {
		Workers              *int    `yaml:"workers"`
		OutputSuffix         *string `yaml:"outputSuffix"`
		MaxUncompressedBytes *int64  `yaml:"maxUncompressedBytes"`
	} `yaml:"optimizer"`

	Render *struct {
		CanvasWidth    *int     `yaml:"canvasWidth"`
		CanvasHeight   *int     `yaml:"canvasHeight"`
		Layers         *int     `yaml:"layers"`
		BaseExposureMS *float64 `yaml:"baseExposureMs"`
	} `yaml:"render"`

	API *struct {
		ListenAddr       *string        `yaml:"listenAddr"`
		MaxBodyBytes     *int64         `yaml:"maxBodyBytes"`
		ReadTimeout      *time.Duration `yaml:"readTimeout"`
		WriteTimeout     *time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout  *time.Duration `yaml:"shutdownTimeout"`
		RateLimitEnabled *bool          `yaml:"rateLimitEnabled"`
		RateLimitRPM     *int           `yaml:"rateLimitRpm"`
	} `yaml:"api"`

	Cache *struct {
		Backend         *string        `yaml:"backend"`
		TTL             *time.Duration `yaml:"ttl"`
		CleanupInterval *time.Duration `yaml:"cleanupInterval"`
		Dir             *string        `yaml:"dir"`
		RedisAddr       *string        `yaml:"redisAddr"`
		RedisPassword   *string        `yaml:"redisPassword"`
		RedisDB         *int           `yaml:"redisDb"`
	} `yaml:"cache"`

	History *struct {
		Path      *string        `yaml:"path"`
		Retention *time.Duration `yaml:"retention"`
	} `yaml:"history"`

	Watch *struct {
		Inbox         *string        `yaml:"inbox"`
		Outbox        *string        `yaml:"outbox"`
		RatePerSecond *float64       `yaml:"ratePerSecond"`
		Debounce      *time.Duration `yaml:"debounce"`
	} `yaml:"watch"`

	Telemetry *struct {
		Enabled      *bool    `yaml:"enabled"`
		Exporter     *string  `yaml:"exporter"`
		Endpoint     *string  `yaml:"endpoint"`
		Environment  *string  `yaml:"environment"`
		SamplingRate *float64 `yaml:"samplingRate"`
	} `yaml:"telemetry"`
}
