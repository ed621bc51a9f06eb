// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/dosemux/internal/client"
	"github.com/ManuGH/dosemux/internal/config"
	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/ManuGH/dosemux/internal/persistence/sqlite"
	"github.com/spf13/cobra"
)

// jobSource reads job records locally or from a server.
type jobSource interface {
	Get(ctx context.Context, id string) (jobs.Record, error)
	List(ctx context.Context, limit int) ([]jobs.Record, error)
}

type remoteJobs struct{ c *client.Client }

func (r remoteJobs) Get(ctx context.Context, id string) (jobs.Record, error) { return r.c.Job(ctx, id) }
func (r remoteJobs) List(ctx context.Context, limit int) ([]jobs.Record, error) {
	return r.c.Jobs(ctx, limit)
}

func openJobSource(ctx context.Context, cfg config.AppConfig, remote string) (jobSource, func(), error) {
	if remote != "" {
		c, err := client.New(remote, 0)
		if err != nil {
			return nil, nil, err
		}
		return remoteJobs{c}, func() {}, nil
	}
	h, err := jobs.OpenHistory(ctx, cfg.History.Path)
	if err != nil {
		return nil, nil, err
	}
	return h, func() { _ = h.Close() }, nil
}

func newJobsCmd(g *globalOptions) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and maintain the optimization history",
	}
	cmd.PersistentFlags().StringVar(&remote, "remote", "", "read jobs from a dosemux server instead of the local history")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.load(cmd, true)
			if err != nil {
				return err
			}
			src, done, err := openJobSource(cmd.Context(), cfg, remote)
			if err != nil {
				return err
			}
			defer done()
			records, err := src.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJobs(cmd.OutOrStdout(), records)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of jobs")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one job as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd, true)
			if err != nil {
				return err
			}
			src, done, err := openJobSource(cmd.Context(), cfg, remote)
			if err != nil {
				return err
			}
			defer done()
			rec, err := src.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete jobs older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.load(cmd, true)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.History.Retention
			}
			if olderThan <= 0 {
				return fmt.Errorf("retention must be positive, got %s", olderThan)
			}
			h, err := jobs.OpenHistory(cmd.Context(), cfg.History.Path)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()
			n, err := h.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d jobs\n", n)
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff (default: history.retention)")

	var full bool
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the history database for corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.load(cmd, true)
			if err != nil {
				return err
			}
			mode := "quick"
			if full {
				mode = "full"
			}
			issues, err := sqlite.VerifyIntegrity(cmd.Context(), cfg.History.Path, mode)
			if err != nil {
				return err
			}
			if len(issues) > 0 {
				for _, issue := range issues {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), issue)
				}
				return fmt.Errorf("%s: %d integrity issues", cfg.History.Path, len(issues))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", cfg.History.Path)
			return nil
		},
	}
	verify.Flags().BoolVar(&full, "full", false, "run a full integrity check instead of a quick check")

	cmd.AddCommand(list, show, prune, verify)
	return cmd
}

func printJobs(w io.Writer, records []jobs.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tSTATUS\tCACHE\tNAME")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Source, r.Status, r.CacheHit, r.Name)
	}
	return tw.Flush()
}
