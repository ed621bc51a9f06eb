// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package optimizer merges exposure masks that share printer settings.
//
// Within a layer, image settings that differ only in their mask and exposure
// time are grouped. Non-overlapping masks in a group are combined into
// progressive steps: step k covers every pixel whose original exposure is at
// least the k-th distinct exposure time and lasts for the difference to the
// previous time. Every pixel therefore receives the same total dose as before
// while the printer performs fewer exposures.
package optimizer

import (
	"fmt"
	"image"

	"github.com/ManuGH/dosemux/internal/printfile"
)

// Group is a set of image settings sharing every key except the image file
// and exposure time.
type Group struct {
	Key     string
	Members []*printfile.Object
}

// GroupBySettings groups list by printer settings. Groups are returned in
// order of first appearance and members keep their input order.
func GroupBySettings(list []*printfile.Object) ([]Group, error) {
	var groups []Group
	index := make(map[string]int)
	for i, o := range list {
		key, err := printfile.SettingsKey(o)
		if err != nil {
			return nil, fmt.Errorf("image settings %d: %w", i, err)
		}
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, Group{Key: key})
		}
		groups[gi].Members = append(groups[gi].Members, o)
	}
	return groups, nil
}

// ImageSource resolves mask names to decoded masks.
type ImageSource interface {
	Image(name string) (*image.Gray, error)
}

type nameChecker interface {
	HasImage(name string) bool
}

// Images is an in-memory ImageSource.
type Images map[string]*image.Gray

// Image implements ImageSource.
func (m Images) Image(name string) (*image.Gray, error) {
	img, ok := m[name]
	if !ok || img == nil {
		return nil, fmt.Errorf("%w: %s", printfile.ErrMissingImage, name)
	}
	return img, nil
}

// HasImage reports whether name is present.
func (m Images) HasImage(name string) bool {
	_, ok := m[name]
	return ok
}

// Names returns the image names in m.
func (m Images) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	return names
}
