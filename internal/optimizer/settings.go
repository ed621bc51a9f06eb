// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package optimizer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"runtime"

	"github.com/ManuGH/dosemux/internal/mask"
	"github.com/ManuGH/dosemux/internal/metrics"
	"github.com/ManuGH/dosemux/internal/printfile"
	"golang.org/x/sync/errgroup"
)

// DefaultOutputSuffix is appended to the input stem when no output path is given.
const DefaultOutputSuffix = "_optimized"

// Options tunes an optimization run.
type Options struct {
	// Workers bounds the number of layers optimized concurrently.
	// Zero uses GOMAXPROCS.
	Workers int
	// OutputSuffix names the default output file. Empty uses DefaultOutputSuffix.
	OutputSuffix string
	// KeepUnreferenced retains slices no layer references after optimization.
	KeepUnreferenced bool
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) suffix() string {
	if o.OutputSuffix != "" {
		return o.OutputSuffix
	}
	return DefaultOutputSuffix
}

// Stats summarises an optimization run.
type Stats struct {
	Layers        int     `json:"layers"`
	LayersChanged int     `json:"layers_changed"`
	ImagesBefore  int     `json:"images_before"`
	ImagesAfter   int     `json:"images_after"`
	NewMasks      int     `json:"new_masks"`
	SharedMasks   int     `json:"shared_masks"`
	ExposureMSIn  float64 `json:"exposure_ms_before"`
	ExposureMSOut float64 `json:"exposure_ms_after"`
}

func (s Stats) metrics() metrics.OptimizerStats {
	return metrics.OptimizerStats{
		Layers:        s.Layers,
		LayersChanged: s.LayersChanged,
		ImagesIn:      s.ImagesBefore,
		ImagesOut:     s.ImagesAfter,
		MasksShared:   s.SharedMasks,
	}
}

// Mask is a generated mask with its PNG encoding.
type Mask struct {
	Image *image.Gray
	PNG   []byte
}

// SettingsResult is the outcome of OptimizePrintSettings.
type SettingsResult struct {
	Settings *printfile.PrintSettings
	// Masks holds the generated masks keyed by slice name.
	Masks map[string]Mask
	Stats Stats
}

// Images returns the generated masks as an ImageSource.
func (r SettingsResult) Images() Images {
	out := make(Images, len(r.Masks))
	for n, m := range r.Masks {
		out[n] = m.Image
	}
	return out
}

type encodedImage struct {
	name   string
	img    *image.Gray
	png    []byte
	digest [sha256.Size]byte
}

type layerResult struct {
	images  []*printfile.Object
	changed bool
	fresh   []encodedImage
}

// OptimizePrintSettings optimizes every layer of ps. Layers without an image
// settings list, and empty lists, are copied unchanged. Layers are processed
// concurrently and merged in layer order. ps is not modified.
//
// Masks generated in different layers that are pixel-identical are written
// once and shared. Masks whose provisional names collide across layers are
// renamed.
func OptimizePrintSettings(ctx context.Context, ps *printfile.PrintSettings, src ImageSource, opts Options) (SettingsResult, error) {
	out := ps.Clone()
	results := make([]layerResult, len(out.Layers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, layer := range out.Layers {
		if !layer.HasImageList() || len(layer.Images) == 0 {
			results[i] = layerResult{images: layer.Images}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := runLayer(layer.Images, src)
			if err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SettingsResult{}, err
	}

	return merge(ps, out, results, src), nil
}

func runLayer(list []*printfile.Object, src ImageSource) (layerResult, error) {
	images, fresh, err := optimizeLayer(list, src)
	if err != nil {
		return layerResult{}, err
	}
	res := layerResult{images: images, changed: len(fresh) > 0 || len(images) != len(list)}
	for _, f := range fresh {
		var buf bytes.Buffer
		if err := mask.EncodePNG(&buf, f.img); err != nil {
			return layerResult{}, fmt.Errorf("encode %s: %w", f.name, err)
		}
		data := buf.Bytes()
		res.fresh = append(res.fresh, encodedImage{name: f.name, img: f.img, png: data, digest: sha256.Sum256(data)})
	}
	return res, nil
}

// merge assigns final names to generated masks in layer order and writes
// the optimized lists into out.
func merge(in, out *printfile.PrintSettings, results []layerResult, src ImageSource) SettingsResult {
	res := SettingsResult{Settings: out, Masks: make(map[string]Mask)}
	byDigest := make(map[[sha256.Size]byte]string)
	checker, _ := src.(nameChecker)
	taken := func(name string) bool {
		if _, ok := res.Masks[name]; ok {
			return true
		}
		return checker != nil && checker.HasImage(name)
	}

	for i, layer := range out.Layers {
		r := results[i]
		res.Stats.Layers++
		before := in.Layers[i].Images
		res.Stats.ImagesBefore += len(before)
		res.Stats.ExposureMSIn += sumExposure(before)

		if r.changed {
			res.Stats.LayersChanged++
			rename := make(map[string]string, len(r.fresh))
			for _, f := range r.fresh {
				if existing, ok := byDigest[f.digest]; ok {
					rename[f.name] = existing
					res.Stats.SharedMasks++
					continue
				}
				name := printfile.Unique(f.name, taken)
				if name != f.name {
					rename[f.name] = name
				}
				byDigest[f.digest] = name
				res.Masks[name] = Mask{Image: f.img, PNG: f.png}
				res.Stats.NewMasks++
			}
			for _, o := range r.images {
				if n, err := printfile.ImageFile(o); err == nil {
					if to, ok := rename[n]; ok {
						printfile.SetImageFile(o, to)
					}
				}
			}
			layer.SetImages(r.images)
		}

		res.Stats.ImagesAfter += len(layer.Images)
		res.Stats.ExposureMSOut += sumExposure(layer.Images)
	}
	return res
}

// sumExposure adds up exposure times, ignoring entries without a valid one.
func sumExposure(list []*printfile.Object) float64 {
	var total float64
	for _, o := range list {
		if ms, err := printfile.ExposureMS(o); err == nil && ms > 0 {
			total += ms
		}
	}
	return roundExposure(total)
}
