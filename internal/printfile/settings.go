// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package printfile

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Well-known keys of print_settings.json.
const (
	KeyLayers            = "Layers"
	KeyImageSettingsList = "Image settings list"
	KeyImageFile         = "Image file"
	KeyExposureMS        = "Layer exposure time (ms)"
)

// PrintSettings is the decoded print_settings.json document. Keys other
// than "Layers" are preserved verbatim and in order.
type PrintSettings struct {
	doc       *Object
	hasLayers bool
	Layers    []*Layer
}

// Layer is one entry of "Layers". Images is nil when the layer carries no
// "Image settings list".
type Layer struct {
	doc     *Object
	hasList bool
	Images  []*Object
}

// NewPrintSettings returns a document with an empty "Layers" array.
func NewPrintSettings() *PrintSettings {
	return &PrintSettings{doc: NewObject(), hasLayers: true}
}

// NewLayer returns a layer holding the given image settings.
func NewLayer(images []*Object) *Layer {
	return &Layer{doc: NewObject(), hasList: true, Images: images}
}

// ParseSettings decodes print_settings.json. Syntax errors are returned
// unwrapped as *json.SyntaxError.
func ParseSettings(data []byte) (*PrintSettings, error) {
	doc := NewObject()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	ps := &PrintSettings{doc: doc}
	raw, ok := doc.Get(KeyLayers)
	if !ok {
		return ps, nil
	}
	ps.hasLayers = true

	var layers []*Object
	if err := json.Unmarshal(raw, &layers); err != nil {
		return nil, fmt.Errorf("%w: %q must be an array of objects: %v", ErrInvalidValue, KeyLayers, err)
	}
	ps.Layers = make([]*Layer, len(layers))
	for i, ldoc := range layers {
		if ldoc == nil {
			ldoc = NewObject()
		}
		l := &Layer{doc: ldoc}
		if rawList, ok := ldoc.Get(KeyImageSettingsList); ok {
			l.hasList = true
			if err := json.Unmarshal(rawList, &l.Images); err != nil {
				return nil, fmt.Errorf("%w: layer %d %q: %v", ErrInvalidValue, i, KeyImageSettingsList, err)
			}
			if l.Images == nil {
				l.Images = []*Object{}
			}
			for j, img := range l.Images {
				if img == nil {
					return nil, fmt.Errorf("%w: layer %d %q entry %d is null", ErrInvalidValue, i, KeyImageSettingsList, j)
				}
			}
		}
		ps.Layers[i] = l
	}
	return ps, nil
}

// Doc exposes the top-level object for reading keys other than "Layers".
func (ps *PrintSettings) Doc() *Object { return ps.doc }

// Clone deep-copies the document.
func (ps *PrintSettings) Clone() *PrintSettings {
	c := &PrintSettings{doc: ps.doc.Clone(), hasLayers: ps.hasLayers}
	if ps.Layers != nil {
		c.Layers = make([]*Layer, len(ps.Layers))
		for i, l := range ps.Layers {
			c.Layers[i] = l.Clone()
		}
	}
	return c
}

// MarshalJSON implements json.Marshaler.
func (ps *PrintSettings) MarshalJSON() ([]byte, error) {
	doc := ps.doc.Clone()
	if ps.hasLayers || len(ps.Layers) > 0 {
		layers := ps.Layers
		if layers == nil {
			layers = []*Layer{}
		}
		if err := doc.Set(KeyLayers, layers); err != nil {
			return nil, err
		}
	}
	return doc.MarshalJSON()
}

// Doc exposes the layer object for reading keys other than the image list.
func (l *Layer) Doc() *Object { return l.doc }

// HasImageList reports whether the layer carries an "Image settings list".
func (l *Layer) HasImageList() bool { return l.hasList }

// SetImages replaces the image settings list.
func (l *Layer) SetImages(images []*Object) {
	l.hasList = true
	l.Images = images
}

// Clone deep-copies the layer.
func (l *Layer) Clone() *Layer {
	c := &Layer{doc: l.doc.Clone(), hasList: l.hasList}
	if l.Images != nil {
		c.Images = make([]*Object, len(l.Images))
		for i, img := range l.Images {
			c.Images[i] = img.Clone()
		}
	}
	return c
}

// MarshalJSON implements json.Marshaler.
func (l *Layer) MarshalJSON() ([]byte, error) {
	doc := l.doc.Clone()
	if l.hasList {
		images := l.Images
		if images == nil {
			images = []*Object{}
		}
		if err := doc.Set(KeyImageSettingsList, images); err != nil {
			return nil, err
		}
	}
	return doc.MarshalJSON()
}

// ImageFile returns the "Image file" of an image settings object.
func ImageFile(o *Object) (string, error) {
	var name string
	if err := o.Decode(KeyImageFile, &name); err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty %q", ErrInvalidValue, KeyImageFile)
	}
	return name, nil
}

// SetImageFile sets the "Image file" of an image settings object.
func SetImageFile(o *Object, name string) {
	_ = o.Set(KeyImageFile, name) // marshalling a string cannot fail
}

// ExposureMS returns the "Layer exposure time (ms)" of an image settings object.
func ExposureMS(o *Object) (float64, error) {
	var v float64
	if err := o.Decode(KeyExposureMS, &v); err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidValue, KeyExposureMS)
	}
	return v, nil
}

// SetExposureMS stores ms, as an integer when it has no fractional part.
func SetExposureMS(o *Object, ms float64) {
	o.SetRaw(KeyExposureMS, json.RawMessage(FormatMS(ms)))
}

// FormatMS renders an exposure the way it is written into settings.
func FormatMS(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64)
}

// SettingsKey identifies the printer settings of an image settings object,
// ignoring its image file and exposure time. Objects with equal keys may be
// exposed together.
func SettingsKey(o *Object) (string, error) {
	keys := make([]string, 0, o.Len())
	for _, k := range o.keys {
		if k == KeyImageFile || k == KeyExposureMS {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		c, err := canonical(o.vals[k])
		if err != nil {
			return "", fmt.Errorf("canonicalise %q: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		b.WriteString(c)
	}
	b.WriteByte('}')
	return b.String(), nil
}
