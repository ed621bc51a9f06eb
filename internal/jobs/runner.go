// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/dosemux/internal/cache"
	"github.com/ManuGH/dosemux/internal/log"
	"github.com/ManuGH/dosemux/internal/metrics"
	"github.com/ManuGH/dosemux/internal/optimizer"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/ManuGH/dosemux/internal/telemetry"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// HistoryStore records finished jobs.
type HistoryStore interface {
	Insert(ctx context.Context, r Record) error
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Optimizer optimizer.Options
	// CacheTTL is the lifetime of cached outputs. Zero never expires.
	CacheTTL time.Duration
	// MaxUncompressedBytes bounds the decompressed input archive. Zero uses
	// printfile.DefaultMaxUncompressed.
	MaxUncompressedBytes int64
}

// Request is one optimization request.
type Request struct {
	Source string
	// Name identifies the input in logs and history, e.g. its file name.
	Name string
	Data []byte
	// OutputPath is recorded in the history when the caller stores the
	// output on disk.
	OutputPath string
	// Write, when set, receives the output before the job is recorded. An
	// error fails the job.
	Write func(output []byte) error
}

// Result is a finished optimization.
type Result struct {
	Record Record
	Output []byte
}

// artifact is what the cache holds for an input digest.
type artifact struct {
	Output []byte
	Stats  optimizer.Stats
}

// encode lays out the artifact as a 4-byte big-endian stats length, the
// stats as JSON, then the output zip.
func (a artifact) encode() ([]byte, error) {
	stats, err := json.Marshal(a.Stats)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4, 4+len(stats)+len(a.Output))
	binary.BigEndian.PutUint32(buf, uint32(len(stats)))
	buf = append(buf, stats...)
	return append(buf, a.Output...), nil
}

func decodeArtifact(raw []byte) (artifact, error) {
	if len(raw) < 4 {
		return artifact{}, errors.New("cached artifact truncated")
	}
	n := int(binary.BigEndian.Uint32(raw))
	if len(raw) < 4+n {
		return artifact{}, errors.New("cached artifact truncated")
	}
	var a artifact
	if err := json.Unmarshal(raw[4:4+n], &a.Stats); err != nil {
		return artifact{}, err
	}
	a.Output = raw[4+n:]
	return a, nil
}

// Runner optimizes print files with a content-addressed output cache.
// Concurrent requests for identical inputs share a single optimization.
type Runner struct {
	cfg     RunnerConfig
	cache   cache.Store
	history HistoryStore
	sf      singleflight.Group
	now     func() time.Time
}

// NewRunner returns a runner. A nil store disables caching and a nil history
// disables recording.
func NewRunner(cfg RunnerConfig, store cache.Store, history HistoryStore) *Runner {
	if store == nil {
		store = cache.NewNoopStore()
	}
	return &Runner{cfg: cfg, cache: store, history: history, now: time.Now}
}

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (r *Runner) cacheKey(digest string) string {
	if r.cfg.Optimizer.KeepUnreferenced {
		return digest + ":keep"
	}
	return digest
}

// Optimize runs one request. The returned record is also stored in the
// history; a failed run is recorded and its error returned.
func (r *Runner) Optimize(ctx context.Context, req Request) (Result, error) {
	id := uuid.New().String()
	ctx = log.ContextWithJobID(ctx, id)
	logger := log.WithComponentFromContext(ctx, "jobs")

	ctx, span := telemetry.Tracer(telemetry.ScopeJobs).Start(ctx, "jobs.optimize")
	defer span.End()

	rec := Record{
		ID:         id,
		Source:     req.Source,
		Name:       req.Name,
		Digest:     Digest(req.Data),
		InputBytes: int64(len(req.Data)),
		StartedAt:  r.now().UTC(),
	}

	art, hit, shared, err := r.resolve(ctx, rec.Digest, req.Data)
	if err == nil && req.Write != nil {
		if err = req.Write(art.Output); err == nil {
			rec.OutputPath = req.OutputPath
		}
	}
	rec.FinishedAt = r.now().UTC()
	rec.CacheHit = hit
	rec.Shared = shared
	metrics.RecordOptimization(req.Source, rec.Duration(), err)
	span.SetAttributes(telemetry.JobAttributes(id, req.Source, rec.Digest, hit)...)

	if err != nil {
		telemetry.RecordError(span, err)
		rec.Status = StatusFailed
		rec.Error = err.Error()
		r.record(ctx, rec)
		logger.Warn().Err(err).
			Str(log.FieldEvent, "job.failed").
			Str(log.FieldDigest, rec.Digest).
			Str("name", req.Name).
			Msg("optimization failed")
		return Result{Record: rec}, err
	}

	rec.Status = StatusSucceeded
	rec.Stats = art.Stats
	rec.OutputBytes = int64(len(art.Output))
	r.record(ctx, rec)

	logger.Info().
		Str(log.FieldEvent, "job.succeeded").
		Str(log.FieldDigest, rec.Digest).
		Str("name", req.Name).
		Bool("cache_hit", hit).
		Bool("shared", shared).
		Int(log.FieldLayers, art.Stats.Layers).
		Int("images_before", art.Stats.ImagesBefore).
		Int("images_after", art.Stats.ImagesAfter).
		Int64(log.FieldDuration, rec.Duration().Milliseconds()).
		Msg("optimization finished")
	return Result{Record: rec, Output: art.Output}, nil
}

// resolve returns the optimized artifact for data, from the cache when
// possible. shared reports that another in-flight request computed it.
func (r *Runner) resolve(ctx context.Context, digest string, data []byte) (artifact, bool, bool, error) {
	key := r.cacheKey(digest)
	if art, ok := r.lookup(ctx, key); ok {
		return art, true, false, nil
	}

	v, err, shared := r.sf.Do(key, func() (any, error) {
		return r.compute(context.WithoutCancel(ctx), key, data)
	})
	if shared {
		metrics.RecordDeduplicated()
	}
	if err != nil {
		return artifact{}, false, shared, err
	}
	return v.(artifact), false, shared, nil
}

func (r *Runner) lookup(ctx context.Context, key string) (artifact, bool) {
	backend := r.cache.Backend()
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheLookup(backend, "error")
		logger := log.WithComponentFromContext(ctx, "jobs")
		logger.Warn().Err(err).Str("backend", backend).Msg("cache lookup failed")
		return artifact{}, false
	}
	if !ok {
		metrics.RecordCacheLookup(backend, "miss")
		return artifact{}, false
	}
	art, err := decodeArtifact(raw)
	if err != nil {
		metrics.RecordCacheLookup(backend, "error")
		return artifact{}, false
	}
	metrics.RecordCacheLookup(backend, "hit")
	return art, true
}

func (r *Runner) compute(ctx context.Context, key string, data []byte) (artifact, error) {
	in, err := printfile.ReadBytesLimit(data, r.cfg.MaxUncompressedBytes)
	if err != nil {
		return artifact{}, err
	}
	out, stats, _, err := optimizer.OptimizeArchive(ctx, in, r.cfg.Optimizer)
	if err != nil {
		return artifact{}, err
	}
	output, err := printfile.Bytes(out)
	if err != nil {
		return artifact{}, err
	}
	art := artifact{Output: output, Stats: stats}

	raw, err := art.encode()
	if err == nil {
		err = r.cache.Put(ctx, key, raw, r.cfg.CacheTTL)
	}
	metrics.RecordCacheStore(r.cache.Backend(), err)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "jobs")
		logger.Warn().Err(err).Msg("cache store failed")
	}
	return art, nil
}

func (r *Runner) record(ctx context.Context, rec Record) {
	if r.history == nil {
		return
	}
	// History writes outlive a cancelled request.
	if err := r.history.Insert(context.WithoutCancel(ctx), rec); err != nil {
		logger := log.WithComponentFromContext(ctx, "jobs")
		logger.Error().Err(err).Msg("failed to record job")
	}
}

// OptimizeFile optimizes the print file at in and writes the result
// atomically to out. An empty out writes next to in.
func (r *Runner) OptimizeFile(ctx context.Context, source, in, out string) (Record, error) {
	data, err := os.ReadFile(in) // #nosec G304 -- input paths are operator-supplied
	if err != nil {
		return Record{}, err
	}
	if out == "" {
		out = optimizer.OutputPath(in, r.cfg.Optimizer.OutputSuffix)
	}
	res, err := r.Optimize(ctx, Request{
		Source:     source,
		Name:       in,
		Data:       data,
		OutputPath: out,
		Write: func(output []byte) error {
			if err := renameio.WriteFile(out, output, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			return nil
		},
	})
	if err != nil {
		return res.Record, fmt.Errorf("optimize %s: %w", in, err)
	}
	return res.Record, nil
}
