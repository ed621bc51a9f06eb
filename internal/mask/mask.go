// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mask implements the grayscale mask operations used to combine
// exposure layers. A mask is an *image.Gray whose pixel value is the relative
// dose a pixel receives during one exposure (0 = dark, 255 = full).
package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrSizeMismatch is returned when two masks with different bounds are combined.
var ErrSizeMismatch = errors.New("mask size mismatch")

// New returns a black mask of the given size.
func New(width, height int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, width, height))
}

// ToGray returns img as a gray mask with its origin at (0,0). Gray inputs
// are copied so callers never alias decoded data.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			srcOff := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], g.Pix[srcOff:srcOff+b.Dx()])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Clone copies m.
func Clone(m *image.Gray) *image.Gray {
	return ToGray(m)
}

func sameSize(a, b *image.Gray) error {
	if a.Bounds().Size() != b.Bounds().Size() {
		return fmt.Errorf("%w: %v vs %v", ErrSizeMismatch, a.Bounds().Size(), b.Bounds().Size())
	}
	return nil
}

// rows calls fn with the matching pixel rows of a and b.
func rows(a, b *image.Gray, fn func(ra, rb []uint8) bool) {
	ab, bb := a.Bounds(), b.Bounds()
	w := ab.Dx()
	for y := 0; y < ab.Dy(); y++ {
		oa := a.PixOffset(ab.Min.X, ab.Min.Y+y)
		ob := b.PixOffset(bb.Min.X, bb.Min.Y+y)
		if !fn(a.Pix[oa:oa+w], b.Pix[ob:ob+w]) {
			return
		}
	}
}

// Lighter returns the per-pixel maximum of a and b.
func Lighter(a, b *image.Gray) (*image.Gray, error) {
	if err := sameSize(a, b); err != nil {
		return nil, err
	}
	out := Clone(a)
	if err := LighterInto(out, b); err != nil {
		return nil, err
	}
	return out, nil
}

// LighterInto raises every pixel of dst to at least the matching pixel of src.
func LighterInto(dst, src *image.Gray) error {
	if err := sameSize(dst, src); err != nil {
		return err
	}
	rows(dst, src, func(rd, rs []uint8) bool {
		for i, v := range rs {
			if v > rd[i] {
				rd[i] = v
			}
		}
		return true
	})
	return nil
}

// Union folds Lighter over masks. It returns nil for an empty input.
func Union(masks ...*image.Gray) (*image.Gray, error) {
	if len(masks) == 0 {
		return nil, nil
	}
	out := Clone(masks[0])
	for _, m := range masks[1:] {
		if err := LighterInto(out, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Overlaps reports whether any pixel is lit in both a and b. Masks of
// different size are reported as overlapping so callers never merge them.
func Overlaps(a, b *image.Gray) bool {
	if sameSize(a, b) != nil {
		return true
	}
	hit := false
	rows(a, b, func(ra, rb []uint8) bool {
		for i, v := range ra {
			if v != 0 && rb[i] != 0 {
				hit = true
				return false
			}
		}
		return true
	})
	return hit
}

// Equal reports whether a and b have the same size and pixels.
func Equal(a, b *image.Gray) bool {
	if sameSize(a, b) != nil {
		return false
	}
	eq := true
	rows(a, b, func(ra, rb []uint8) bool {
		for i := range ra {
			if ra[i] != rb[i] {
				eq = false
				return false
			}
		}
		return true
	})
	return eq
}

// Bounds returns the smallest rectangle containing every lit pixel, or the
// zero rectangle when m is dark.
func Bounds(m *image.Gray) image.Rectangle {
	b := m.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := m.PixOffset(b.Min.X, y)
		row := m.Pix[off : off+b.Dx()]
		for i, v := range row {
			if v == 0 {
				continue
			}
			x := b.Min.X + i
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Empty reports whether m has no lit pixel.
func Empty(m *image.Gray) bool {
	return Bounds(m).Empty()
}

// LitPixels counts pixels with a non-zero value.
func LitPixels(m *image.Gray) int {
	n := 0
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := m.PixOffset(b.Min.X, y)
		for _, v := range m.Pix[off : off+b.Dx()] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// Scale multiplies every pixel by factor, clamping to [0, 255].
func Scale(m *image.Gray, factor float64) *image.Gray {
	out := Clone(m)
	for i, v := range out.Pix {
		s := float64(v)*factor + 0.5
		switch {
		case s <= 0:
			out.Pix[i] = 0
		case s >= 255:
			out.Pix[i] = 255
		default:
			out.Pix[i] = uint8(s)
		}
	}
	return out
}

// FillRect sets every pixel of r (clipped to m) to value.
func FillRect(m *image.Gray, r image.Rectangle, value uint8) {
	draw.Draw(m, r.Intersect(m.Bounds()), &image.Uniform{C: color.Gray{Y: value}}, image.Point{}, draw.Src)
}
