// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package layout

import (
	"fmt"
	"image"
)

// AddComponent places a component of the given size at (x, y) in group.
// Non-positive sizes use the defaults. It returns the new component's ID.
func (l *Layout) AddComponent(group string, x, y, width, height int) (int, error) {
	if l.groupIndex(group) < 0 {
		return 0, fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	if width <= 0 {
		width = DefaultComponentWidth
	}
	if height <= 0 {
		height = DefaultComponentHeight
	}
	c := Component{ID: l.nextID(), X: x, Y: y, Width: width, Height: height, Group: group}
	l.Components = append(l.Components, c)
	return c.ID, nil
}

// DeleteComponents removes the selected components.
func (l *Layout) DeleteComponents(ids []int) error {
	if _, err := l.indices(ids); err != nil {
		return err
	}
	drop := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := l.Components[:0]
	for _, c := range l.Components {
		if _, ok := drop[c.ID]; !ok {
			kept = append(kept, c)
		}
	}
	l.Components = kept
	return nil
}

// TileOptions describes a grid of components.
type TileOptions struct {
	Group         string
	X, Y          int
	Rows, Cols    int
	Width, Height int
	GapX, GapY    int
}

// Tile adds a Rows x Cols grid of components starting at (X, Y). Cells that
// would extend past the canvas are skipped. It returns the new IDs.
func (l *Layout) Tile(opts TileOptions) ([]int, error) {
	if l.groupIndex(opts.Group) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, opts.Group)
	}
	if opts.Rows <= 0 || opts.Cols <= 0 {
		return nil, fmt.Errorf("tile needs positive rows and columns, got %dx%d", opts.Rows, opts.Cols)
	}
	if opts.Width <= 0 {
		opts.Width = DefaultComponentWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultComponentHeight
	}

	canvas := l.Bounds()
	var ids []int
	for r := 0; r < opts.Rows; r++ {
		for c := 0; c < opts.Cols; c++ {
			x := opts.X + c*(opts.Width+opts.GapX)
			y := opts.Y + r*(opts.Height+opts.GapY)
			if !image.Rect(x, y, x+opts.Width, y+opts.Height).In(canvas) {
				continue
			}
			id, err := l.AddComponent(opts.Group, x, y, opts.Width, opts.Height)
			if err != nil {
				return ids, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SetX moves the selected components to column x.
func (l *Layout) SetX(ids []int, x int) error {
	return l.each(ids, func(c *Component) { c.X = x })
}

// SetY moves the selected components to row y.
func (l *Layout) SetY(ids []int, y int) error {
	return l.each(ids, func(c *Component) { c.Y = y })
}

// AlignLeft aligns the selection's left edges to the leftmost one.
func (l *Layout) AlignLeft(ids []int) error {
	return l.align(ids, func(cs []Component) func(*Component) {
		left := cs[0].X
		for _, c := range cs[1:] {
			left = min(left, c.X)
		}
		return func(c *Component) { c.X = left }
	})
}

// AlignRight aligns the selection's right edges to the rightmost one.
func (l *Layout) AlignRight(ids []int) error {
	return l.align(ids, func(cs []Component) func(*Component) {
		right := cs[0].X + cs[0].Width
		for _, c := range cs[1:] {
			right = max(right, c.X+c.Width)
		}
		return func(c *Component) { c.X = right - c.Width }
	})
}

// AlignTop aligns the selection's top edges to the topmost one.
func (l *Layout) AlignTop(ids []int) error {
	return l.align(ids, func(cs []Component) func(*Component) {
		top := cs[0].Y
		for _, c := range cs[1:] {
			top = min(top, c.Y)
		}
		return func(c *Component) { c.Y = top }
	})
}

// AlignBottom aligns the selection's bottom edges to the lowest one.
func (l *Layout) AlignBottom(ids []int) error {
	return l.align(ids, func(cs []Component) func(*Component) {
		bottom := cs[0].Y + cs[0].Height
		for _, c := range cs[1:] {
			bottom = max(bottom, c.Y+c.Height)
		}
		return func(c *Component) { c.Y = bottom - c.Height }
	})
}

// SelectInArea returns the IDs of components lying fully inside the
// rectangle spanned by the two corners, in either order.
func (l *Layout) SelectInArea(x1, y1, x2, y2 int) []int {
	area := image.Rect(x1, y1, x2, y2) // Rect normalises the corners
	var ids []int
	for _, c := range l.Components {
		if c.X >= area.Min.X && c.X+c.Width <= area.Max.X &&
			c.Y >= area.Min.Y && c.Y+c.Height <= area.Max.Y {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (l *Layout) indices(ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		i := l.componentIndex(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %d", ErrComponentNotFound, id)
		}
		out = append(out, i)
	}
	return out, nil
}

func (l *Layout) each(ids []int, fn func(*Component)) error {
	idx, err := l.indices(ids)
	if err != nil {
		return err
	}
	for _, i := range idx {
		fn(&l.Components[i])
	}
	return nil
}

func (l *Layout) align(ids []int, plan func([]Component) func(*Component)) error {
	idx, err := l.indices(ids)
	if err != nil {
		return err
	}
	selected := make([]Component, len(idx))
	for j, i := range idx {
		selected[j] = l.Components[i]
	}
	apply := plan(selected)
	for _, i := range idx {
		apply(&l.Components[i])
	}
	return nil
}
