// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ManuGH/dosemux/internal/layout"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/ManuGH/dosemux/internal/render"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

type renderOptions struct {
	output       string
	preview      string
	layers       int
	baseExposure float64
	settings     []string
	previewW     int
	previewH     int
}

func newRenderCmd(g *globalOptions) *cobra.Command {
	o := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <layout.json>",
		Short: "Render a layout into a print file with one mask per group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd, true)
			if err != nil {
				return err
			}
			if o.output == "" && o.preview == "" {
				return fmt.Errorf("either --output or --preview is required")
			}
			l, err := layout.Load(args[0])
			if err != nil {
				return err
			}

			if o.preview != "" {
				var buf bytes.Buffer
				if err := render.WritePreview(&buf, l, o.previewW, o.previewH); err != nil {
					return err
				}
				if err := renameio.WriteFile(o.preview, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", o.preview, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "preview -> %s\n", o.preview)
			}
			if o.output == "" {
				return nil
			}

			settings, err := parseSettings(o.settings)
			if err != nil {
				return err
			}
			opts := render.Options{
				Layers:         cfg.Render.Layers,
				BaseExposureMS: cfg.Render.BaseExposureMS,
				Settings:       settings,
			}
			if cmd.Flags().Changed("layers") {
				opts.Layers = o.layers
			}
			if cmd.Flags().Changed("base-exposure") {
				opts.BaseExposureMS = o.baseExposure
			}
			a, err := render.Render(cmd.Context(), l, opts)
			if err != nil {
				return err
			}
			if err := printfile.Write(o.output, a); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d layers, %d masks)\n", args[0], o.output, len(a.Settings.Layers), len(a.ImageNames()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "print file to write")
	cmd.Flags().StringVar(&o.preview, "preview", "", "also write a colored PNG preview")
	cmd.Flags().IntVar(&o.previewW, "preview-width", 800, "maximum preview width")
	cmd.Flags().IntVar(&o.previewH, "preview-height", 500, "maximum preview height")
	cmd.Flags().IntVar(&o.layers, "layers", 1, "number of identical layers")
	cmd.Flags().Float64Var(&o.baseExposure, "base-exposure", render.DefaultBaseExposureMS, "base exposure in ms for scale-mode groups")
	cmd.Flags().StringArrayVar(&o.settings, "set", nil, "extra image setting key=value; JSON values are decoded (repeatable)")
	return cmd
}

// parseSettings turns key=value pairs into image settings. Values that are
// valid JSON keep their type, anything else is a string.
func parseSettings(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid setting %q, want key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			decoded = v
		}
		out[k] = decoded
	}
	return out, nil
}
