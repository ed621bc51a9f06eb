// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"time"

	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/ManuGH/dosemux/internal/optimizer"
	"github.com/spf13/cobra"
)

func newWatchCmd(g *globalOptions) *cobra.Command {
	var (
		ratePerSecond float64
		debounce      time.Duration
		scanExisting  bool
		record        bool
	)
	cmd := &cobra.Command{
		Use:   "watch <inbox> <outbox>",
		Short: "Optimize print files dropped into a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd, true)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("rate") {
				ratePerSecond = cfg.Watch.RatePerSecond
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = cfg.Watch.Debounce
			}

			var history jobs.HistoryStore
			if record {
				h, err := jobs.OpenHistory(cmd.Context(), cfg.History.Path)
				if err != nil {
					return err
				}
				defer func() { _ = h.Close() }()
				history = h
			}
			runner := jobs.NewRunner(jobs.RunnerConfig{
				Optimizer: optimizer.Options{
					Workers:      cfg.Optimizer.Workers,
					OutputSuffix: cfg.Optimizer.OutputSuffix,
				},
				MaxUncompressedBytes: cfg.Optimizer.MaxUncompressedBytes,
			}, nil, history)

			w, err := jobs.NewWatcher(jobs.WatcherConfig{
				Inbox:         args[0],
				Outbox:        args[1],
				RatePerSecond: ratePerSecond,
				Debounce:      debounce,
				ScanExisting:  scanExisting,
				OutputSuffix:  cfg.Optimizer.OutputSuffix,
			}, runner)
			if err != nil {
				return err
			}
			if err := w.Run(cmd.Context()); err != nil {
				return err
			}
			processed, failed := w.Counts()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "processed %d, failed %d\n", processed, failed)
			return nil
		},
	}
	cmd.Flags().Float64Var(&ratePerSecond, "rate", 2, "files started per second")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period after the last write")
	cmd.Flags().BoolVar(&scanExisting, "scan-existing", true, "also process print files already in the inbox")
	cmd.Flags().BoolVar(&record, "record", false, "record runs in the job history")
	return cmd
}
