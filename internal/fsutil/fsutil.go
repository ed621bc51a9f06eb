// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil holds filesystem guards for directories dosemux reads from
// on behalf of other users, such as the watch inbox.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves outside its root.
var ErrOutsideRoot = errors.New("path escapes root")

// ConfineAbsPath resolves symlinks in target and returns the real path when
// it lies underneath root. A target that does not exist yet is checked by its
// parent directory.
func ConfineAbsPath(root, target string) (string, error) {
	if !filepath.IsAbs(target) {
		return "", fmt.Errorf("target path must be absolute: %s", target)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", err
	}

	realPath, err := resolve(filepath.Clean(target))
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil {
		return "", fmt.Errorf("rel computation failed: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, realPath)
	}
	return realPath, nil
}

func resolve(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		rp, err := filepath.EvalSymlinks(path)
		if err != nil {
			// Existing but unresolvable (dangling link, loop): fail closed.
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		return rp, nil
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve parent path: %w", err)
	}
	return filepath.Join(dir, filepath.Base(path)), nil
}

// IsRegularFile returns an error unless path exists and is a regular file
// (after following symlinks).
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}
