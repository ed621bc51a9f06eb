// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var asJSON, perLayer bool
	cmd := &cobra.Command{
		Use:   "inspect <in.zip>",
		Short: "Summarize the layers and exposures of a print file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := printfile.Read(args[0])
			if err != nil {
				return err
			}
			sum, err := printfile.Summarize(a)
			if err != nil {
				return err
			}
			refErr := a.CheckReferences()

			w := cmd.OutOrStdout()
			if asJSON {
				out := struct {
					printfile.Summary
					ReferenceError string `json:"reference_error,omitempty"`
				}{Summary: sum}
				if refErr != nil {
					out.ReferenceError = refErr.Error()
				}
				if !perLayer {
					out.PerLayer = nil
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			_, _ = fmt.Fprintf(w, "layers: %d\nexposures: %d\nslices: %d\ntotal exposure: %s ms\n",
				sum.Layers, sum.Images, sum.Slices, printfile.FormatMS(sum.TotalExposureMS))
			if refErr != nil {
				_, _ = fmt.Fprintf(w, "warning: %v\n", refErr)
			}
			if !perLayer {
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "LAYER\tIMAGES\tGROUPS\tEXPOSURES\tTOTAL MS\tOPTIMIZED")
			for _, l := range sum.PerLayer {
				_, _ = fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\t%t\n", l.Index, l.Images, l.Groups, l.DistinctExposures, printfile.FormatMS(l.TotalExposureMS), l.OptimizedExposure)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	cmd.Flags().BoolVar(&perLayer, "layers", false, "include per-layer details")
	return cmd
}
