// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/dosemux/internal/validate"
	"github.com/google/renameio/v2"
)

// Parse decodes a layout document. Unknown fields are rejected.
func Parse(r io.Reader) (*Layout, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	l := New(0, 0)
	if err := dec.Decode(l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if l.Groups == nil {
		l.Groups = []Group{}
	}
	if l.Components == nil {
		l.Components = []Component{}
	}
	return l, nil
}

// Load reads and validates the layout at path.
func Load(path string) (*Layout, error) {
	f, err := os.Open(path) // #nosec G304 -- path is operator-supplied
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	l, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Marshal renders the layout as indented JSON.
func (l *Layout) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save validates the layout and writes it atomically to path.
func (l *Layout) Save(path string) error {
	if err := l.Validate(); err != nil {
		return err
	}
	data, err := l.Marshal()
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// Validate checks canvas size, groups and component placement.
func (l *Layout) Validate() error {
	v := validate.New()
	v.Range("width", l.Width, 1, MaxCanvasSide)
	v.Range("height", l.Height, 1, MaxCanvasSide)

	seenGroups := make(map[string]struct{}, len(l.Groups))
	for i, g := range l.Groups {
		field := fmt.Sprintf("groups[%d]", i)
		v.NotEmpty(field+".name", g.Name)
		if _, dup := seenGroups[g.Name]; dup {
			v.AddError(field+".name", "duplicate group name", g.Name)
		}
		seenGroups[g.Name] = struct{}{}
		if !colorPattern.MatchString(g.Color) {
			v.AddError(field+".color", ErrInvalidColor.Error(), g.Color)
		}
		if err := g.Exposure.Validate(); err != nil {
			v.AddError(field+".exposure", err.Error(), g.Exposure)
		}
	}

	seenIDs := make(map[int]struct{}, len(l.Components))
	canvas := l.Bounds()
	for i, c := range l.Components {
		field := fmt.Sprintf("components[%d]", i)
		if _, dup := seenIDs[c.ID]; dup {
			v.AddError(field+".id", "duplicate component id", c.ID)
		}
		seenIDs[c.ID] = struct{}{}
		v.Positive(field+".width", c.Width)
		v.Positive(field+".height", c.Height)
		if _, ok := seenGroups[c.Group]; !ok {
			v.AddError(field+".group", "unknown group", c.Group)
		}
		if c.Width > 0 && c.Height > 0 && !c.Rect().In(canvas) {
			v.AddError(field, "component extends past the canvas", Describe(c))
		}
	}
	return v.Err()
}
