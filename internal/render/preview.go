// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"strconv"

	"github.com/ManuGH/dosemux/internal/layout"
	"github.com/ManuGH/dosemux/internal/mask"
)

// maxPreviewSide bounds the canvas Preview draws on before scaling to the
// requested size.
const maxPreviewSide = 4096

// Preview draws the layout on a white canvas with each component in its
// group color, scaled to fit maxW x maxH. Non-positive bounds keep the
// canvas size, up to 4096 pixels per side.
func Preview(l *layout.Layout, maxW, maxH int) (image.Image, error) {
	b := l.Bounds()
	cw, ch := mask.Fit(b.Dx(), b.Dy(), maxPreviewSide, maxPreviewSide)
	canvas := image.NewRGBA(image.Rect(0, 0, cw, ch))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	colors := make(map[string]color.RGBA, len(l.Groups))
	for _, g := range l.Groups {
		c, err := ParseHexColor(g.Color)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.Name, err)
		}
		colors[g.Name] = c
	}
	for _, c := range l.Components {
		fill, ok := colors[c.Group]
		if !ok {
			return nil, fmt.Errorf("%w: %s", layout.ErrGroupNotFound, c.Group)
		}
		r := scaleRect(c.Rect(), b.Size(), canvas.Bounds().Size())
		draw.Draw(canvas, r.Intersect(canvas.Bounds()), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	}
	return mask.Thumbnail(canvas, maxW, maxH), nil
}

// scaleRect maps r from a from-sized canvas onto a to-sized one, rounding
// outwards so small components stay visible.
func scaleRect(r image.Rectangle, from, to image.Point) image.Rectangle {
	if from == to {
		return r
	}
	down := func(v, f, t int) int { return v * t / f }
	up := func(v, f, t int) int { return (v*t + f - 1) / f }
	return image.Rect(
		down(r.Min.X, from.X, to.X), down(r.Min.Y, from.Y, to.Y),
		up(r.Max.X, from.X, to.X), up(r.Max.Y, from.Y, to.Y),
	)
}

// WritePreview encodes Preview as PNG to w.
func WritePreview(w io.Writer, l *layout.Layout, maxW, maxH int) error {
	img, err := Preview(l, maxW, maxH)
	if err != nil {
		return err
	}
	return mask.EncodePNG(w, img)
}

// ParseHexColor parses "#rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("%w: %q", layout.ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", layout.ErrInvalidColor, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
