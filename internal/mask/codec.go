// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mask

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

// MaxSide bounds the width and height of a decoded mask.
const MaxSide = 16384

// ErrTooLarge is returned for PNGs whose header exceeds MaxSide.
var ErrTooLarge = errors.New("mask too large")

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// DecodePNG reads a PNG and converts it to a gray mask. The header is
// checked against MaxSide before any pixel data is allocated.
func DecodePNG(r io.Reader) (*image.Gray, error) {
	var head bytes.Buffer
	cfg, err := png.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	if cfg.Width > MaxSide || cfg.Height > MaxSide {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d per side", ErrTooLarge, cfg.Width, cfg.Height, MaxSide)
	}
	img, err := png.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g, nil
	}
	return ToGray(img), nil
}

// EncodePNG writes m as PNG; gray masks stay 8-bit grayscale.
func EncodePNG(w io.Writer, m image.Image) error {
	if err := encoder.Encode(w, m); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Thumbnail scales img to fit within maxW x maxH, preserving aspect ratio.
// Images already small enough are returned unchanged.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	var dst xdraw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Fit returns the size of a w x h image scaled down to fit within
// maxW x maxH, preserving aspect ratio. Sizes that already fit, and
// non-positive bounds, leave it unchanged.
func Fit(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 || w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	fw, fh := maxW, h*maxW/w
	if fh > maxH {
		fw, fh = w*maxH/h, maxH
	}
	return max(fw, 1), max(fh, 1)
}
