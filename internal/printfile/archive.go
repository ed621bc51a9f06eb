// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package printfile reads and writes zipped print files: a
// print_settings.json document plus one grayscale PNG mask per exposure
// under slices/.
package printfile

import (
	"bytes"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/ManuGH/dosemux/internal/mask"
)

const (
	// SettingsName is the archive entry holding the print settings.
	SettingsName = "print_settings.json"
	// SlicesDir is the archive directory holding the masks.
	SlicesDir = "slices/"
)

// Entry is an archive member this package passes through untouched.
type Entry struct {
	Name string
	Data []byte
}

// Archive is an in-memory print file. Masks are kept PNG-encoded and
// decoded on demand, so large prints do not hold every layer in memory.
// Archive is safe for concurrent use.
type Archive struct {
	Settings *PrintSettings

	mu     sync.RWMutex
	slices map[string][]byte
	extra  []Entry
}

// NewArchive returns an archive with the given settings and no slices.
func NewArchive(ps *PrintSettings) *Archive {
	if ps == nil {
		ps = NewPrintSettings()
	}
	return &Archive{Settings: ps, slices: make(map[string][]byte)}
}

// Image decodes the slice called name.
func (a *Archive) Image(name string) (*image.Gray, error) {
	a.mu.RLock()
	data, ok := a.slices[name]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingImage, name)
	}
	m, err := mask.DecodePNG(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("slice %s: %w", name, err)
	}
	return m, nil
}

// HasImage reports whether a slice called name exists.
func (a *Archive) HasImage(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.slices[name]
	return ok
}

// SetImage encodes m as PNG and stores it as slice name.
func (a *Archive) SetImage(name string, m image.Image) error {
	var buf bytes.Buffer
	if err := mask.EncodePNG(&buf, m); err != nil {
		return fmt.Errorf("slice %s: %w", name, err)
	}
	a.SetImagePNG(name, buf.Bytes())
	return nil
}

// SetImagePNG stores already encoded PNG data as slice name.
func (a *Archive) SetImagePNG(name string, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.slices == nil {
		a.slices = make(map[string][]byte)
	}
	a.slices[name] = data
}

// ImagePNG returns the encoded slice called name.
func (a *Archive) ImagePNG(name string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.slices[name]
	return data, ok
}

// ImageNames returns every slice name, sorted.
func (a *Archive) ImageNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.slices))
	for n := range a.slices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extra returns the pass-through entries.
func (a *Archive) Extra() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry, len(a.extra))
	copy(out, a.extra)
	return out
}

// AddExtra appends a pass-through entry.
func (a *Archive) AddExtra(e Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.extra = append(a.extra, e)
}

// Referenced returns the image files named by the settings, in order of
// first reference.
func (a *Archive) Referenced() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for li, l := range a.Settings.Layers {
		for _, img := range l.Images {
			name, err := ImageFile(img)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", li, err)
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out, nil
}

// Prune drops slices the settings no longer reference and returns how many
// were removed.
func (a *Archive) Prune() (int, error) {
	refs, err := a.Referenced()
	if err != nil {
		return 0, err
	}
	keep := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		keep[r] = struct{}{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for name := range a.slices {
		if _, ok := keep[name]; !ok {
			delete(a.slices, name)
			removed++
		}
	}
	return removed, nil
}

// CheckReferences verifies every referenced image exists.
func (a *Archive) CheckReferences() error {
	refs, err := a.Referenced()
	if err != nil {
		return err
	}
	for _, r := range refs {
		if !a.HasImage(r) {
			return fmt.Errorf("%w: %s", ErrMissingImage, r)
		}
	}
	return nil
}
