// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package printfile

import "fmt"

// LayerSummary describes the exposures of one layer.
type LayerSummary struct {
	Index             int       `json:"index"`
	Images            int       `json:"images"`
	Groups            int       `json:"groups"`
	ExposuresMS       []float64 `json:"exposures_ms"`
	DistinctExposures int       `json:"distinct_exposures"`
	TotalExposureMS   float64   `json:"total_exposure_ms"`
	OptimizedExposure bool      `json:"optimized"`
}

// Summary describes a whole print file.
type Summary struct {
	Layers          int            `json:"layers"`
	Images          int            `json:"images"`
	Slices          int            `json:"slices"`
	TotalExposureMS float64        `json:"total_exposure_ms"`
	PerLayer        []LayerSummary `json:"per_layer,omitempty"`
}

// Summarize computes exposure statistics. TotalExposureMS is the sum of all
// exposures, which is the time the printer spends exposing.
func Summarize(a *Archive) (Summary, error) {
	s := Summary{Layers: len(a.Settings.Layers), Slices: len(a.ImageNames())}
	for i, l := range a.Settings.Layers {
		ls := LayerSummary{Index: i, Images: len(l.Images), ExposuresMS: make([]float64, 0, len(l.Images))}
		groups := make(map[string]struct{})
		distinct := make(map[float64]struct{})
		for _, img := range l.Images {
			ms, err := ExposureMS(img)
			if err != nil {
				return s, fmt.Errorf("layer %d: %w", i, err)
			}
			key, err := SettingsKey(img)
			if err != nil {
				return s, fmt.Errorf("layer %d: %w", i, err)
			}
			groups[key] = struct{}{}
			distinct[ms] = struct{}{}
			ls.ExposuresMS = append(ls.ExposuresMS, ms)
			ls.TotalExposureMS += ms
			if name, err := ImageFile(img); err == nil && IsOptimizedName(name) {
				ls.OptimizedExposure = true
			}
		}
		ls.Groups = len(groups)
		ls.DistinctExposures = len(distinct)
		s.Images += ls.Images
		s.TotalExposureMS += ls.TotalExposureMS
		s.PerLayer = append(s.PerLayer, ls)
	}
	return s, nil
}
