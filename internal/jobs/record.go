// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs runs print file optimizations with caching, records them in
// a history database and watches an inbox directory for new print files.
package jobs

import (
	"errors"
	"time"

	"github.com/ManuGH/dosemux/internal/optimizer"
)

// Sources of optimization requests.
const (
	SourceCLI   = "cli"
	SourceAPI   = "api"
	SourceWatch = "watch"
)

// Job states.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrJobNotFound is returned when a job ID is unknown.
var ErrJobNotFound = errors.New("job not found")

// Record is one optimization run as stored in the history.
type Record struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Name        string          `json:"name"`
	Digest      string          `json:"digest"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	CacheHit    bool            `json:"cache_hit"`
	Shared      bool            `json:"shared"`
	InputBytes  int64           `json:"input_bytes"`
	OutputBytes int64           `json:"output_bytes"`
	OutputPath  string          `json:"output_path,omitempty"`
	Stats       optimizer.Stats `json:"stats"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
