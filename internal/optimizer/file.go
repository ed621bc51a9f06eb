// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package optimizer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/dosemux/internal/log"
	"github.com/ManuGH/dosemux/internal/metrics"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/ManuGH/dosemux/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Result describes an optimized print file.
type Result struct {
	Input    string        `json:"input"`
	Output   string        `json:"output"`
	Stats    Stats         `json:"stats"`
	Pruned   int           `json:"pruned_slices"`
	Duration time.Duration `json:"duration"`
}

// OutputPath returns the default output path for in: the input stem with
// suffix appended, next to the input.
func OutputPath(in, suffix string) string {
	if suffix == "" {
		suffix = DefaultOutputSuffix
	}
	dir := filepath.Dir(in)
	base := filepath.Base(in)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+suffix+".zip")
}

// OptimizeArchive returns a new archive with optimized settings. The input
// archive is not modified. Unless opts.KeepUnreferenced is set, slices no
// longer referenced by any layer are dropped; the number dropped is returned.
func OptimizeArchive(ctx context.Context, a *printfile.Archive, opts Options) (*printfile.Archive, Stats, int, error) {
	ctx, span := telemetry.Tracer(telemetry.ScopeOptimizer).Start(ctx, "optimizer.archive")
	defer span.End()

	res, err := OptimizePrintSettings(ctx, a.Settings, a, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, Stats{}, 0, err
	}

	out := printfile.NewArchive(res.Settings)
	for _, name := range a.ImageNames() {
		data, _ := a.ImagePNG(name)
		out.SetImagePNG(name, data)
	}
	for name, m := range res.Masks {
		out.SetImagePNG(name, m.PNG)
	}
	for _, e := range a.Extra() {
		out.AddExtra(e)
	}

	pruned := 0
	if !opts.KeepUnreferenced {
		if pruned, err = out.Prune(); err != nil {
			telemetry.RecordError(span, err)
			return nil, Stats{}, 0, err
		}
	}

	span.SetAttributes(telemetry.PrintAttributes(res.Stats.Layers, res.Stats.ImagesBefore, res.Stats.ImagesAfter)...)
	span.SetAttributes(attribute.Int("print.pruned", pruned))
	metrics.RecordOptimizerStats(res.Stats.metrics())
	return out, res.Stats, pruned, nil
}

// OptimizePrintFile reads the print file at in, optimizes it and writes the
// result to out. An empty out writes next to in using OutputPath.
func OptimizePrintFile(ctx context.Context, in, out string, opts Options) (Result, error) {
	start := time.Now()
	logger := log.WithComponentFromContext(ctx, "optimizer")
	if out == "" {
		out = OutputPath(in, opts.suffix())
	}

	a, err := printfile.Read(in)
	if err != nil {
		return Result{}, err
	}

	optimized, stats, pruned, err := OptimizeArchive(ctx, a, opts)
	if err != nil {
		return Result{}, fmt.Errorf("optimize %s: %w", in, err)
	}
	if err := printfile.Write(out, optimized); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", out, err)
	}

	res := Result{Input: in, Output: out, Stats: stats, Pruned: pruned, Duration: time.Since(start)}
	logger.Info().
		Str(log.FieldEvent, "optimize.done").
		Str(log.FieldPath, in).
		Str(log.FieldOutputPath, out).
		Int(log.FieldLayers, stats.Layers).
		Int("images_before", stats.ImagesBefore).
		Int("images_after", stats.ImagesAfter).
		Int("pruned", pruned).
		Int64(log.FieldDuration, res.Duration.Milliseconds()).
		Msg("print file optimized")
	return res, nil
}
