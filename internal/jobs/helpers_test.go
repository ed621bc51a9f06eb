// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/dosemux/internal/mask"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/stretchr/testify/require"
)

// samplePrintFile returns a zip with one layer of two disjoint squares
// exposed for 1000 and 3000 ms.
func samplePrintFile(t *testing.T) []byte {
	t.Helper()
	return mustBytes(t, newSampleArchive(t))
}

func newSampleArchive(t *testing.T) *printfile.Archive {
	t.Helper()
	setting := func(file string, ms float64) *printfile.Object {
		o := printfile.NewObject()
		printfile.SetImageFile(o, file)
		printfile.SetExposureMS(o, ms)
		require.NoError(t, o.Set("Light intensity", 100))
		return o
	}

	ps := printfile.NewPrintSettings()
	ps.Layers = append(ps.Layers, printfile.NewLayer([]*printfile.Object{
		setting("a.png", 1000),
		setting("b.png", 3000),
	}))
	a := printfile.NewArchive(ps)

	left := mask.New(64, 64)
	mask.FillRect(left, image.Rect(0, 0, 24, 24), 255)
	right := mask.New(64, 64)
	mask.FillRect(right, image.Rect(40, 40, 56, 56), 255)
	require.NoError(t, a.SetImage("a.png", left))
	require.NoError(t, a.SetImage("b.png", right))
	return a
}

func mustBytes(t *testing.T, a *printfile.Archive) []byte {
	t.Helper()
	data, err := printfile.Bytes(a)
	require.NoError(t, err)
	return data
}

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}
