// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/dosemux/internal/client"
	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/ManuGH/dosemux/internal/log"
	"github.com/ManuGH/dosemux/internal/optimizer"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

type optimizeOptions struct {
	output  string
	remote  string
	timeout time.Duration
	keep    bool
	record  bool
}

func newOptimizeCmd(g *globalOptions) *cobra.Command {
	o := &optimizeOptions{}
	cmd := &cobra.Command{
		Use:   "optimize <in.zip>",
		Short: "Merge non-overlapping masks into progressive exposure steps",
		Long: `Optimize a print file. Masks on the same layer that share every printer
setting except exposure time and never light the same pixel are merged into
progressive exposure steps. Every pixel keeps its original dose.

With --remote the file is sent to a running dosemux server instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd, true)
			if err != nil {
				return err
			}
			in := args[0]
			out := o.output
			if out == "" {
				out = optimizer.OutputPath(in, cfg.Optimizer.OutputSuffix)
			}
			if o.remote != "" {
				return runRemoteOptimize(cmd.Context(), cmd.OutOrStdout(), o, in, out)
			}

			var history jobs.HistoryStore
			if o.record {
				h, err := jobs.OpenHistory(cmd.Context(), cfg.History.Path)
				if err != nil {
					return err
				}
				defer func() { _ = h.Close() }()
				history = h
			}

			runner := jobs.NewRunner(jobs.RunnerConfig{
				Optimizer: optimizer.Options{
					Workers:          cfg.Optimizer.Workers,
					OutputSuffix:     cfg.Optimizer.OutputSuffix,
					KeepUnreferenced: o.keep,
				},
				MaxUncompressedBytes: cfg.Optimizer.MaxUncompressedBytes,
			}, nil, history)
			rec, err := runner.OptimizeFile(cmd.Context(), jobs.SourceCLI, in, out)
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output path (default <in>_optimized.zip)")
	cmd.Flags().StringVar(&o.remote, "remote", "", "optimize on a dosemux server, e.g. http://printhost:8088")
	cmd.Flags().DurationVar(&o.timeout, "timeout", client.DefaultTimeout, "request timeout for --remote")
	cmd.Flags().BoolVar(&o.keep, "keep-unreferenced", false, "keep slices no layer references")
	cmd.Flags().BoolVar(&o.record, "record", false, "record the run in the job history")
	return cmd
}

func runRemoteOptimize(ctx context.Context, w io.Writer, o *optimizeOptions, in, out string) error {
	data, err := os.ReadFile(in) // #nosec G304 -- input paths are operator-supplied
	if err != nil {
		return err
	}
	c, err := client.New(o.remote, o.timeout)
	if err != nil {
		return err
	}
	res, err := c.Optimize(ctx, filepath.Base(in), data)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(out, res.Output, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger := log.WithComponent("cli")
	logger.Debug().
		Str(log.FieldRemote, o.remote).
		Str(log.FieldJobID, res.JobID).
		Msg("remote optimization finished")

	cache := "miss"
	if res.CacheHit {
		cache = "hit"
	}
	_, _ = fmt.Fprintf(w, "%s -> %s\n  job %s, cache %s, %d bytes\n", in, out, res.JobID, cache, len(res.Output))
	return nil
}

func printRecord(w io.Writer, rec jobs.Record) {
	s := rec.Stats
	_, _ = fmt.Fprintf(w, "%s -> %s\n", rec.Name, rec.OutputPath)
	_, _ = fmt.Fprintf(w, "  layers: %d (%d changed)\n", s.Layers, s.LayersChanged)
	_, _ = fmt.Fprintf(w, "  exposures: %d -> %d (%d new masks)\n", s.ImagesBefore, s.ImagesAfter, s.NewMasks)
	_, _ = fmt.Fprintf(w, "  exposure time: %.0f ms -> %.0f ms\n", s.ExposureMSIn, s.ExposureMSOut)
	_, _ = fmt.Fprintf(w, "  job %s in %s\n", rec.ID, rec.Duration().Round(time.Millisecond))
}
