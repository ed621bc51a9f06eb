// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mask

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(w, h int, r image.Rectangle, v uint8) *image.Gray {
	m := New(w, h)
	FillRect(m, r, v)
	return m
}

func TestLighter_IsUnion(t *testing.T) {
	a := square(40, 30, image.Rect(0, 0, 10, 10), 255)
	b := square(40, 30, image.Rect(20, 20, 30, 30), 128)

	u, err := Lighter(a, b)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), u.GrayAt(5, 5).Y)
	assert.Equal(t, uint8(128), u.GrayAt(25, 25).Y)
	assert.Equal(t, uint8(0), u.GrayAt(15, 15).Y)

	assert.Equal(t, uint8(0), a.GrayAt(25, 25).Y, "inputs are not modified")
}

func TestLighter_SizeMismatch(t *testing.T) {
	_, err := Lighter(New(10, 10), New(10, 11))
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestUnion(t *testing.T) {
	u, err := Union()
	require.NoError(t, err)
	assert.Nil(t, u)

	a := square(10, 10, image.Rect(0, 0, 2, 2), 10)
	b := square(10, 10, image.Rect(0, 0, 2, 2), 200)
	c := square(10, 10, image.Rect(8, 8, 10, 10), 50)
	u, err = Union(a, b, c)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), u.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(50), u.GrayAt(9, 9).Y)
	assert.Equal(t, 8, LitPixels(u))
}

func TestOverlaps(t *testing.T) {
	a := square(300, 300, image.Rect(0, 0, 100, 100), 255)
	b := square(300, 300, image.Rect(200, 200, 300, 300), 255)
	c := square(300, 300, image.Rect(50, 50, 150, 150), 255)

	assert.False(t, Overlaps(a, b))
	assert.True(t, Overlaps(a, c))
	assert.True(t, Overlaps(c, a))
	assert.True(t, Overlaps(New(3, 3), New(4, 4)), "different sizes never merge")

	touching := square(300, 300, image.Rect(100, 0, 120, 100), 255)
	assert.False(t, Overlaps(a, touching), "adjacent edges do not overlap")
}

func TestBoundsAndEmpty(t *testing.T) {
	m := New(50, 50)
	assert.True(t, Empty(m))
	assert.Equal(t, image.Rectangle{}, Bounds(m))

	m.SetGray(7, 9, color.Gray{Y: 1})
	m.SetGray(20, 3, color.Gray{Y: 1})
	assert.False(t, Empty(m))
	assert.Equal(t, image.Rect(7, 3, 21, 10), Bounds(m))
}

func TestEqual(t *testing.T) {
	a := square(10, 10, image.Rect(1, 1, 4, 4), 9)
	assert.True(t, Equal(a, Clone(a)))
	b := Clone(a)
	b.SetGray(0, 0, color.Gray{Y: 1})
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(a, New(10, 9)))
}

func TestScale_Clamps(t *testing.T) {
	m := square(4, 1, image.Rect(0, 0, 2, 1), 200)
	m.SetGray(2, 0, color.Gray{Y: 100})

	up := Scale(m, 1.5)
	assert.Equal(t, uint8(255), up.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(150), up.GrayAt(2, 0).Y)
	assert.Equal(t, uint8(0), up.GrayAt(3, 0).Y)

	down := Scale(m, -1)
	assert.True(t, Empty(down))
}

func TestToGray_NormalisesOrigin(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(10, 10, 14, 12))
	rgba.Set(10, 10, color.White)

	g := ToGray(rgba)
	assert.Equal(t, image.Rect(0, 0, 4, 2), g.Bounds())
	assert.Equal(t, uint8(255), g.GrayAt(0, 0).Y)

	sub := square(10, 10, image.Rect(5, 5, 6, 6), 77).SubImage(image.Rect(5, 5, 10, 10)).(*image.Gray)
	g = ToGray(sub)
	assert.Equal(t, uint8(77), g.GrayAt(0, 0).Y)
}

func TestPNGRoundTrip(t *testing.T) {
	m := square(64, 32, image.Rect(3, 4, 20, 30), 180)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, m))
	got, err := DecodePNG(&buf)
	require.NoError(t, err)
	assert.True(t, Equal(m, got))

	_, err = DecodePNG(bytes.NewReader([]byte("not a png")))
	assert.Error(t, err)
}

func TestDecodePNG_RejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, New(4, 4)))
	data := buf.Bytes()
	// IHDR width sits at offset 16, height at 20.
	binary.BigEndian.PutUint32(data[16:], MaxSide+1)
	binary.BigEndian.PutUint32(data[20:], 1<<20)
	// IHDR CRC covers the chunk type and its 13 data bytes.
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))

	_, err := DecodePNG(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{2560, 1600, 640, 640, 640, 400},
		{1600, 2560, 640, 640, 400, 640},
		{10, 10, 100, 100, 10, 10},
		{10, 10, 0, 100, 10, 10},
		{10000, 1, 10, 10, 10, 1},
	}
	for _, tt := range tests {
		w, h := Fit(tt.w, tt.h, tt.maxW, tt.maxH)
		assert.Equal(t, [2]int{tt.wantW, tt.wantH}, [2]int{w, h}, "%dx%d in %dx%d", tt.w, tt.h, tt.maxW, tt.maxH)
	}
}

func TestThumbnail(t *testing.T) {
	m := square(2560, 1600, image.Rect(0, 0, 2560, 1600), 255)

	th := Thumbnail(m, 640, 640)
	assert.Equal(t, image.Rect(0, 0, 640, 400), th.Bounds())

	small := New(10, 10)
	assert.Same(t, small, Thumbnail(small, 100, 100))
}
