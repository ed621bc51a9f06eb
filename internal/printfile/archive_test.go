// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package printfile

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/ManuGH/dosemux/internal/mask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, m *image.Gray) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, mask.EncodePNG(&buf, m))
	return buf.Bytes()
}

func TestParseSettings_EmptyShapes(t *testing.T) {
	for _, in := range []string{
		`{"Layers":[]}`,
		`{"Layers":[{"Image settings list":[]}]}`,
		`{"Version":3}`,
		`{"Layers":[{"Z":0.05}]}`,
	} {
		ps, err := ParseSettings([]byte(in))
		require.NoError(t, err, in)
		out, err := json.Marshal(ps)
		require.NoError(t, err)
		assert.JSONEq(t, in, string(out))
	}
}

func TestParseSettings_InvalidJSON(t *testing.T) {
	_, err := ParseSettings([]byte("invalid json"))
	var syn *json.SyntaxError
	require.True(t, errors.As(err, &syn), "got %v", err)

	_, err = ParseSettings([]byte(`{"Layers":{"a":1}}`))
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestParseSettings_RejectsNullImageSettings(t *testing.T) {
	for _, in := range []string{
		`{"Layers":[{"Image settings list":[null]}]}`,
		`{"Layers":[{"Image settings list":[]},{"Image settings list":[{"Image file":"a.png"},null]}]}`,
	} {
		_, err := ParseSettings([]byte(in))
		require.ErrorIs(t, err, ErrInvalidValue, in)
		assert.Contains(t, err.Error(), "is null")
	}

	p := writeZip(t, t.TempDir(), "null.zip", map[string][]byte{
		SettingsName: []byte(`{"Layers":[{"Image settings list":[null]}]}`),
	})
	_, err := Read(p)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestRead_MissingSlicesIsFine(t *testing.T) {
	p := writeZip(t, t.TempDir(), "test.zip", map[string][]byte{
		SettingsName: []byte(`{"Layers":[{"Image settings list":[]}]}`),
	})
	a, err := Read(p)
	require.NoError(t, err)
	assert.Len(t, a.Settings.Layers, 1)
	assert.Empty(t, a.ImageNames())
}

func TestRead_NoSettings(t *testing.T) {
	p := writeZip(t, t.TempDir(), "test.zip", map[string][]byte{"slices/a.png": {1}})
	_, err := Read(p)
	assert.ErrorIs(t, err, ErrNoSettings)
}

func TestRead_InvalidJSONWrapsSyntaxError(t *testing.T) {
	p := writeZip(t, t.TempDir(), "test.zip", map[string][]byte{SettingsName: []byte("invalid json")})
	_, err := Read(p)
	var syn *json.SyntaxError
	assert.True(t, errors.As(err, &syn), "got %v", err)
}

func TestReadBytesLimit(t *testing.T) {
	settings := []byte(`{"Layers":[]}`)
	zipBytes := func(members map[string][]byte) []byte {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for n, data := range members {
			w, err := zw.Create(n)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
		}
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}

	// deflate shrinks 64 KiB of zeros to a few hundred bytes
	bomb := zipBytes(map[string][]byte{SettingsName: settings, "slices/a.png": make([]byte, 64<<10)})
	_, err := ReadBytesLimit(bomb, 16<<10)
	require.ErrorIs(t, err, ErrTooLarge)

	split := zipBytes(map[string][]byte{
		SettingsName:   settings,
		"slices/a.png": make([]byte, 600),
		"slices/b.png": make([]byte, 600),
	})
	_, err = ReadBytesLimit(split, 1000)
	require.ErrorIs(t, err, ErrTooLarge, "the budget covers all members together")

	a, err := ReadBytesLimit(split, 2000)
	require.NoError(t, err)
	assert.Len(t, a.ImageNames(), 2)
}

func TestArchive_RoundTrip(t *testing.T) {
	m := mask.New(32, 16)
	mask.FillRect(m, image.Rect(0, 0, 8, 8), 255)

	settings := `{"Printer":"X","Layers":[{"Z":0.05,"Image settings list":[` +
		`{"Image file":"a.png","Layer exposure time (ms)":1000,"Lift":5}]}]}`
	dir := t.TempDir()
	p := writeZip(t, dir, "in.zip", map[string][]byte{
		SettingsName:    []byte(settings),
		"slices/a.png":  pngBytes(t, m),
		"slices/":       nil,
		"thumbnail.png": {9, 9, 9},
	})

	a, err := Read(p)
	require.NoError(t, err)
	require.NoError(t, a.CheckReferences())

	img, err := a.Image("a.png")
	require.NoError(t, err)
	assert.True(t, mask.Equal(m, img))

	_, err = a.Image("nope.png")
	assert.ErrorIs(t, err, ErrMissingImage)

	out := filepath.Join(dir, "out.zip")
	require.NoError(t, Write(out, a))

	b, err := Read(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, b.ImageNames())
	require.Len(t, b.Extra(), 1)
	assert.Equal(t, "thumbnail.png", b.Extra()[0].Name)

	got, err := json.Marshal(b.Settings)
	require.NoError(t, err)
	assert.JSONEq(t, settings, string(got))
	assert.Equal(t, []string{"Printer", "Layers"}, b.Settings.Doc().Keys())
}

func TestWriteTo_OrderAndDeterminism(t *testing.T) {
	a := NewArchive(nil)
	require.NoError(t, a.SetImage("b.png", mask.New(4, 4)))
	require.NoError(t, a.SetImage("a.png", mask.New(4, 4)))
	a.AddExtra(Entry{Name: "z.txt", Data: []byte("z")})

	first, err := Bytes(a)
	require.NoError(t, err)
	second, err := Bytes(a)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	zr, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{SettingsName, "slices/a.png", "slices/b.png", "z.txt"}, names)
}

func TestArchive_PruneAndReferenced(t *testing.T) {
	ps, err := ParseSettings([]byte(`{"Layers":[` +
		`{"Image settings list":[{"Image file":"a.png","Layer exposure time (ms)":1}]},` +
		`{"Image settings list":[{"Image file":"a.png","Layer exposure time (ms)":1},{"Image file":"b.png","Layer exposure time (ms)":1}]}]}`))
	require.NoError(t, err)
	a := NewArchive(ps)
	for _, n := range []string{"a.png", "b.png", "stale.png"} {
		a.SetImagePNG(n, []byte{1})
	}

	refs, err := a.Referenced()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, refs)

	removed, err := a.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"a.png", "b.png"}, a.ImageNames())
}

func TestSummarize(t *testing.T) {
	ps, err := ParseSettings([]byte(`{"Layers":[` +
		`{"Image settings list":[{"Image file":"a.png","Layer exposure time (ms)":1000,"p":1},{"Image file":"b.png","Layer exposure time (ms)":2000,"p":2}]},` +
		`{"Image settings list":[{"Image file":"a_opt_0.png","Layer exposure time (ms)":500}]}]}`))
	require.NoError(t, err)

	s, err := Summarize(NewArchive(ps))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Layers)
	assert.Equal(t, 3, s.Images)
	assert.InDelta(t, 3500, s.TotalExposureMS, 1e-9)
	assert.Equal(t, 2, s.PerLayer[0].Groups)
	assert.Equal(t, 2, s.PerLayer[0].DistinctExposures)
	assert.Equal(t, 1, s.PerLayer[1].DistinctExposures)
	assert.False(t, s.PerLayer[0].OptimizedExposure)
	assert.True(t, s.PerLayer[1].OptimizedExposure)
}

func TestSummarize_DistinctExposures(t *testing.T) {
	ps, err := ParseSettings([]byte(`{"Layers":[{"Image settings list":[` +
		`{"Image file":"a.png","Layer exposure time (ms)":1000,"p":1},` +
		`{"Image file":"b.png","Layer exposure time (ms)":1000,"p":2},` +
		`{"Image file":"c.png","Layer exposure time (ms)":2500,"p":3}]}]}`))
	require.NoError(t, err)

	s, err := Summarize(NewArchive(ps))
	require.NoError(t, err)
	require.Len(t, s.PerLayer, 1)
	assert.Equal(t, []float64{1000, 1000, 2500}, s.PerLayer[0].ExposuresMS)
	assert.Equal(t, 2, s.PerLayer[0].DistinctExposures)
}

func TestOptimizedName(t *testing.T) {
	taken := map[string]bool{"img_opt_0.png": true, "img_opt_0_1.png": true}
	assert.Equal(t, "img_opt_1.png", OptimizedName("img.png", 1, nil))
	assert.Equal(t, "img_opt_0_2.png", OptimizedName("dir/img.png", 0, func(n string) bool { return taken[n] }))
	assert.True(t, IsOptimizedName("img_opt_1.png"))
	assert.False(t, IsOptimizedName("img.png"))
}

func TestUnique(t *testing.T) {
	taken := map[string]bool{"a.png": true, "a_1.png": true}
	assert.Equal(t, "a_2.png", Unique("a.png", func(n string) bool { return taken[n] }))
	assert.Equal(t, "b.png", Unique("b.png", func(n string) bool { return taken[n] }))
	assert.Equal(t, "a.png", Unique("a.png", nil))
}
