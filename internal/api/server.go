// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves print file optimization, inspection and layout
// rendering over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/dosemux/internal/api/middleware"
	"github.com/ManuGH/dosemux/internal/health"
	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/ManuGH/dosemux/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxBodyBytes = 256 << 20
	DefaultJobsLimit    = 50
	MaxJobsLimit        = 1000

	// MaxRenderLayers bounds the layers query of /api/v1/render.
	MaxRenderLayers = 10000

	defaultPreviewWidth  = 800
	defaultPreviewHeight = 500
)

// Optimizer runs optimization requests.
type Optimizer interface {
	Optimize(ctx context.Context, req jobs.Request) (jobs.Result, error)
}

// JobStore reads the job history.
type JobStore interface {
	Get(ctx context.Context, id string) (jobs.Record, error)
	List(ctx context.Context, limit int) ([]jobs.Record, error)
}

// Config configures the HTTP surface.
type Config struct {
	MaxBodyBytes int64
	// MaxUncompressedBytes bounds the decompressed size of uploaded archives.
	MaxUncompressedBytes int64
	RateLimitRPM         int
	// TracingService names the server tracer; empty disables tracing.
	TracingService string

	// Render defaults, overridable per request.
	RenderLayers         int
	RenderBaseExposureMS float64
	OutputSuffix         string
}

// Deps are the services behind the handlers. History and Health may be nil.
type Deps struct {
	Optimizer Optimizer
	History   JobStore
	Health    *health.Manager
}

// Server holds the HTTP handlers.
type Server struct {
	cfg  Config
	deps Deps
}

// New returns a server. Zero config values take package defaults.
func New(cfg Config, deps Deps) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	return &Server{cfg: cfg, deps: deps}
}

// HealthManager returns the manager used by /healthz and /readyz.
func (s *Server) HealthManager() *health.Manager {
	return s.deps.Health
}

// Handler builds the router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Health endpoints and metrics sit outside the stack so they are never rate
	// limited or traced.
	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{
			EnableSecurityHeaders: true,
			EnableMetrics:         true,
			TracingService:        s.tracingService(),
			EnableLogging:         true,
			RateLimitRPM:          s.cfg.RateLimitRPM,
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/optimize", s.handleOptimize)
			r.Post("/inspect", s.handleInspect)
			r.Post("/render", s.handleRender)
			r.Post("/preview", s.handlePreview)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{id}", s.handleGetJob)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, r.Method+" not allowed")
	})
	return r
}

func (s *Server) tracingService() string {
	if s.cfg.TracingService == "" {
		return ""
	}
	return telemetry.ScopeAPI
}
