// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package printfile

import (
	"fmt"
	"path"
	"strings"
)

// OptimizedMarker is embedded in the names of merged exposure masks.
const OptimizedMarker = "_opt_"

// IsOptimizedName reports whether name was produced by the optimizer.
func IsOptimizedName(name string) bool {
	return strings.Contains(name, OptimizedMarker)
}

// Stem returns name without directory and extension.
func Stem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

// OptimizedName returns "<stem>_opt_<step>.png", made unique against taken.
func OptimizedName(source string, step int, taken func(string) bool) string {
	return Unique(fmt.Sprintf("%s%s%d.png", Stem(source), OptimizedMarker, step), taken)
}

// Unique appends "_<n>" to the stem of name until taken reports it free.
func Unique(name string, taken func(string) bool) string {
	if taken == nil || !taken(name) {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !taken(candidate) {
			return candidate
		}
	}
}
