// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package layout models a dose layout: rectangular components on a canvas,
// each belonging to a named exposure group.
package layout

import (
	"errors"
	"fmt"
	"image"
	"regexp"

	"github.com/ManuGH/dosemux/internal/mask"
)

// Canvas and component defaults.
const (
	DefaultWidth           = 2560
	DefaultHeight          = 1600
	DefaultComponentWidth  = 100
	DefaultComponentHeight = 100

	// MaxCanvasSide bounds the canvas so every group mask stays decodable.
	MaxCanvasSide = mask.MaxSide
)

// Exposure modes.
const (
	// ModeAbsolute exposes the group for Value milliseconds.
	ModeAbsolute = "absolute"
	// ModeScale exposes the group for Value times the base exposure.
	ModeScale = "scale"
)

var (
	// ErrGroupExists is returned when a group name is already in use.
	ErrGroupExists = errors.New("group already exists")
	// ErrGroupNotFound is returned for unknown group names.
	ErrGroupNotFound = errors.New("group not found")
	// ErrComponentNotFound is returned for unknown component IDs.
	ErrComponentNotFound = errors.New("component not found")
	// ErrInvalidColor is returned for colors not in #rrggbb form.
	ErrInvalidColor = errors.New("color must be #rrggbb")
	// ErrInvalidExposure is returned for unknown modes or negative values.
	ErrInvalidExposure = errors.New("invalid exposure")
	// ErrEmptySelection is returned when an operation needs components.
	ErrEmptySelection = errors.New("no components selected")
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// palette is cycled for groups created without a color.
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#42d4f4", "#f032e6", "#bfef45", "#469990", "#9a6324",
}

// Exposure is a group's exposure setting.
type Exposure struct {
	Mode  string  `json:"mode"`
	Value float64 `json:"value"`
}

// DefaultExposure exposes for the base time.
func DefaultExposure() Exposure {
	return Exposure{Mode: ModeScale, Value: 1}
}

// Validate checks the mode and value.
func (e Exposure) Validate() error {
	if e.Mode != ModeAbsolute && e.Mode != ModeScale {
		return fmt.Errorf("%w: mode %q", ErrInvalidExposure, e.Mode)
	}
	if e.Value < 0 {
		return fmt.Errorf("%w: negative value %v", ErrInvalidExposure, e.Value)
	}
	return nil
}

// Milliseconds resolves the exposure against a base time.
func (e Exposure) Milliseconds(baseMS float64) float64 {
	if e.Mode == ModeAbsolute {
		return e.Value
	}
	return baseMS * e.Value
}

// Group is a named set of components exposed together.
type Group struct {
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	Exposure Exposure `json:"exposure"`
}

// Component is a rectangle on the canvas.
type Component struct {
	ID     int    `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Group  string `json:"group"`
}

// Rect returns the component as an image rectangle.
func (c Component) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// Describe renders the component the way the layout status line shows it.
func Describe(c Component) string {
	return fmt.Sprintf("X: %d, Y: %d, Width: %d, Height: %d, Group: %s", c.X, c.Y, c.Width, c.Height, c.Group)
}

// Layout is a canvas with ordered groups and components.
type Layout struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Groups     []Group     `json:"groups"`
	Components []Component `json:"components"`
}

// New returns an empty layout. Non-positive sizes use the defaults.
func New(width, height int) *Layout {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Layout{Width: width, Height: height, Groups: []Group{}, Components: []Component{}}
}

// Bounds returns the canvas rectangle.
func (l *Layout) Bounds() image.Rectangle {
	return image.Rect(0, 0, l.Width, l.Height)
}

// Group returns the group called name.
func (l *Layout) Group(name string) (Group, bool) {
	if i := l.groupIndex(name); i >= 0 {
		return l.Groups[i], true
	}
	return Group{}, false
}

func (l *Layout) groupIndex(name string) int {
	for i, g := range l.Groups {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// Component returns the component with the given ID.
func (l *Layout) Component(id int) (Component, bool) {
	if i := l.componentIndex(id); i >= 0 {
		return l.Components[i], true
	}
	return Component{}, false
}

func (l *Layout) componentIndex(id int) int {
	for i, c := range l.Components {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Members returns the components of a group in layout order.
func (l *Layout) Members(group string) []Component {
	var out []Component
	for _, c := range l.Components {
		if c.Group == group {
			out = append(out, c)
		}
	}
	return out
}

func (l *Layout) nextID() int {
	id := 0
	for _, c := range l.Components {
		if c.ID > id {
			id = c.ID
		}
	}
	return id + 1
}
