// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package optimizer

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ManuGH/dosemux/internal/mask"
	"github.com/ManuGH/dosemux/internal/printfile"
)

// exposurePrecision bounds float noise in step exposures (1 ns in ms).
const exposurePrecision = 1e6

type member struct {
	settings *printfile.Object
	name     string
	exposure float64
	mask     *image.Gray
}

type partition struct {
	members []member
	union   *image.Gray
}

// layerOptimizer carries the per-layer state: decoded masks and the names
// already taken in the layer.
type layerOptimizer struct {
	src    ImageSource
	masks  map[string]*image.Gray
	taken  map[string]struct{}
	global nameChecker
	fresh  []freshImage
}

type freshImage struct {
	name string
	img  *image.Gray
}

// OptimizeLayer merges the masks of one layer's image settings. It returns
// the new image settings list and the masks it created, keyed by name. Lists
// with fewer than two entries are returned unchanged.
func OptimizeLayer(list []*printfile.Object, src ImageSource) ([]*printfile.Object, Images, error) {
	out, fresh, err := optimizeLayer(list, src)
	if err != nil {
		return nil, nil, err
	}
	images := make(Images, len(fresh))
	for _, f := range fresh {
		images[f.name] = f.img
	}
	return out, images, nil
}

func optimizeLayer(list []*printfile.Object, src ImageSource) ([]*printfile.Object, []freshImage, error) {
	if len(list) < 2 {
		return list, nil, nil
	}

	groups, err := GroupBySettings(list)
	if err != nil {
		return nil, nil, err
	}

	lo := &layerOptimizer{
		src:   src,
		masks: make(map[string]*image.Gray),
		taken: make(map[string]struct{}, len(list)),
	}
	if nc, ok := src.(nameChecker); ok {
		lo.global = nc
	}
	for _, o := range list {
		if name, err := printfile.ImageFile(o); err == nil {
			lo.taken[name] = struct{}{}
		}
	}

	out := make([]*printfile.Object, 0, len(list))
	for _, g := range groups {
		if len(g.Members) == 1 {
			out = append(out, g.Members[0])
			continue
		}
		merged, err := lo.mergeGroup(g)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, merged...)
	}
	return out, lo.fresh, nil
}

func (lo *layerOptimizer) isTaken(name string) bool {
	if _, ok := lo.taken[name]; ok {
		return true
	}
	return lo.global != nil && lo.global.HasImage(name)
}

func (lo *layerOptimizer) load(name string) (*image.Gray, error) {
	if m, ok := lo.masks[name]; ok {
		return m, nil
	}
	m, err := lo.src.Image(name)
	if err != nil {
		return nil, err
	}
	lo.masks[name] = m
	return m, nil
}

func (lo *layerOptimizer) mergeGroup(g Group) ([]*printfile.Object, error) {
	members := make([]member, 0, len(g.Members))
	for _, o := range g.Members {
		name, err := printfile.ImageFile(o)
		if err != nil {
			return nil, err
		}
		exp, err := printfile.ExposureMS(o)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if exp <= 0 {
			continue
		}
		m, err := lo.load(name)
		if err != nil {
			return nil, err
		}
		members = append(members, member{settings: o, name: name, exposure: exp, mask: m})
	}

	var out []*printfile.Object
	for _, p := range partitionMembers(members) {
		steps, err := lo.steps(p)
		if err != nil {
			return nil, err
		}
		out = append(out, steps...)
	}
	return out, nil
}

// partitionMembers assigns each member to the first partition whose union it
// does not overlap, opening a new partition when none fits.
func partitionMembers(members []member) []*partition {
	var parts []*partition
	for _, m := range members {
		placed := false
		for _, p := range parts {
			if mask.Overlaps(p.union, m.mask) {
				continue
			}
			// Overlaps reports false only for equal sizes.
			_ = mask.LighterInto(p.union, m.mask)
			p.members = append(p.members, m)
			placed = true
			break
		}
		if !placed {
			parts = append(parts, &partition{members: []member{m}, union: mask.Clone(m.mask)})
		}
	}
	return parts
}

// steps turns a partition into progressive exposures, shortest first.
func (lo *layerOptimizer) steps(p *partition) ([]*printfile.Object, error) {
	times := distinctExposures(p.members)

	// Build cumulative masks from the longest exposure down: the mask for
	// time t covers every member exposed for at least t.
	cumulative := make([]*image.Gray, len(times))
	var acc *image.Gray
	for k := len(times) - 1; k >= 0; k-- {
		for _, m := range p.members {
			if m.exposure != times[k] {
				continue
			}
			if acc == nil {
				acc = mask.Clone(m.mask)
				continue
			}
			if err := mask.LighterInto(acc, m.mask); err != nil {
				return nil, fmt.Errorf("merge %s: %w", m.name, err)
			}
		}
		cumulative[k] = mask.Clone(acc)
	}

	first := p.members[0]
	out := make([]*printfile.Object, 0, len(times))
	prev := 0.0
	for k, t := range times {
		name := printfile.OptimizedName(first.name, k, lo.isTaken)
		lo.taken[name] = struct{}{}
		lo.fresh = append(lo.fresh, freshImage{name: name, img: cumulative[k]})

		step := first.settings.Clone()
		printfile.SetImageFile(step, name)
		printfile.SetExposureMS(step, roundExposure(t-prev))
		out = append(out, step)
		prev = t
	}
	return out, nil
}

func distinctExposures(members []member) []float64 {
	seen := make(map[float64]struct{}, len(members))
	times := make([]float64, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.exposure]; ok {
			continue
		}
		seen[m.exposure] = struct{}{}
		times = append(times, m.exposure)
	}
	sort.Float64s(times)
	return times
}

func roundExposure(ms float64) float64 {
	return math.Round(ms*exposurePrecision) / exposurePrecision
}
