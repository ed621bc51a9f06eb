// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package render turns a layout into a print file and a color preview.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/ManuGH/dosemux/internal/layout"
	"github.com/ManuGH/dosemux/internal/mask"
	"github.com/ManuGH/dosemux/internal/metrics"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/ManuGH/dosemux/internal/telemetry"
)

// DefaultBaseExposureMS is used when Options.BaseExposureMS is unset.
const DefaultBaseExposureMS = 2000

// MaxLayers bounds Options.Layers.
const MaxLayers = 100000

// ErrTooManyLayers is returned when Options.Layers exceeds MaxLayers.
var ErrTooManyLayers = errors.New("too many layers")

// Options controls Render.
type Options struct {
	// Layers is the number of identical layers to emit. Zero means one.
	Layers int
	// BaseExposureMS resolves scale-mode group exposures.
	BaseExposureMS float64
	// Settings are extra keys copied into every image settings entry.
	Settings map[string]any
	// LayerSettings are extra keys set on every layer.
	LayerSettings map[string]any
}

type groupMask struct {
	group    layout.Group
	slug     string
	exposure float64
	png      []byte
}

// Render draws one mask per non-empty group and emits opts.Layers layers,
// each with one image settings entry per group. Masks are named
// "<layer>_<slug>.png".
func Render(ctx context.Context, l *layout.Layout, opts Options) (*printfile.Archive, error) {
	start := time.Now()
	_, span := telemetry.Tracer(telemetry.ScopeRender).Start(ctx, "render.layout")
	defer span.End()

	if opts.Layers <= 0 {
		opts.Layers = 1
	}
	if opts.BaseExposureMS <= 0 {
		opts.BaseExposureMS = DefaultBaseExposureMS
	}

	a, masks, err := render(l, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		metrics.RecordRender(time.Since(start), 0, 0, err)
		return nil, err
	}

	pngBytes := 0
	for _, gm := range masks {
		pngBytes += len(gm.png)
	}
	metrics.RecordRender(time.Since(start), len(masks), pngBytes, nil)
	span.SetAttributes(telemetry.PrintAttributes(opts.Layers, len(masks)*opts.Layers, len(masks)*opts.Layers)...)
	return a, nil
}

func render(l *layout.Layout, opts Options) (*printfile.Archive, []groupMask, error) {
	if opts.Layers > MaxLayers {
		return nil, nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyLayers, opts.Layers, MaxLayers)
	}
	if err := l.Validate(); err != nil {
		return nil, nil, err
	}
	masks, err := drawGroups(l, opts.BaseExposureMS)
	if err != nil {
		return nil, nil, err
	}

	ps := printfile.NewPrintSettings()
	a := printfile.NewArchive(ps)
	for li := 0; li < opts.Layers; li++ {
		images := make([]*printfile.Object, 0, len(masks))
		for _, gm := range masks {
			name := fmt.Sprintf("%d_%s.png", li, gm.slug)
			entry, err := imageSettings(name, gm.exposure, opts.Settings)
			if err != nil {
				return nil, nil, err
			}
			images = append(images, entry)
			a.SetImagePNG(name, gm.png)
		}
		layer := printfile.NewLayer(images)
		for _, k := range sortedKeys(opts.LayerSettings) {
			if err := layer.Doc().Set(k, opts.LayerSettings[k]); err != nil {
				return nil, nil, fmt.Errorf("layer setting %q: %w", k, err)
			}
		}
		ps.Layers = append(ps.Layers, layer)
	}
	return a, masks, nil
}

func drawGroups(l *layout.Layout, baseMS float64) ([]groupMask, error) {
	slugs := NewSlugger()
	var out []groupMask
	for _, g := range l.Groups {
		members := l.Members(g.Name)
		if len(members) == 0 {
			continue
		}
		m := mask.New(l.Width, l.Height)
		for _, c := range members {
			mask.FillRect(m, c.Rect(), 255)
		}
		var buf bytes.Buffer
		if err := mask.EncodePNG(&buf, m); err != nil {
			return nil, fmt.Errorf("group %s: %w", g.Name, err)
		}
		out = append(out, groupMask{
			group:    g,
			slug:     slugs.Slug(g.Name),
			exposure: g.Exposure.Milliseconds(baseMS),
			png:      buf.Bytes(),
		})
	}
	return out, nil
}

func imageSettings(name string, ms float64, extra map[string]any) (*printfile.Object, error) {
	o := printfile.NewObject()
	printfile.SetImageFile(o, name)
	printfile.SetExposureMS(o, ms)
	for _, k := range sortedKeys(extra) {
		if k == printfile.KeyImageFile || k == printfile.KeyExposureMS {
			continue
		}
		if err := o.Set(k, extra[k]); err != nil {
			return nil, fmt.Errorf("setting %q: %w", k, err)
		}
	}
	return o, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupMask draws the mask of a single group.
func GroupMask(l *layout.Layout, group string) (*image.Gray, error) {
	if _, ok := l.Group(group); !ok {
		return nil, fmt.Errorf("%w: %s", layout.ErrGroupNotFound, group)
	}
	m := mask.New(l.Width, l.Height)
	for _, c := range l.Members(group) {
		mask.FillRect(m, c.Rect(), 255)
	}
	return m, nil
}
