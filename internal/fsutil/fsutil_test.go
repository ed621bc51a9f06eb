// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineAbsPath(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	inside := filepath.Join(root, "print.zip")
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o600))
	secret := filepath.Join(outside, "secret.zip")
	require.NoError(t, os.WriteFile(secret, []byte("x"), 0o600))

	got, err := ConfineAbsPath(root, inside)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realRoot, "print.zip"), got)

	got, err = ConfineAbsPath(root, filepath.Join(root, "later.zip"))
	require.NoError(t, err, "missing files are checked by their parent")
	assert.Equal(t, filepath.Join(realRoot, "later.zip"), got)

	_, err = ConfineAbsPath(root, "relative.zip")
	assert.Error(t, err)

	_, err = ConfineAbsPath(root, filepath.Join(root, "..", filepath.Base(outside), "secret.zip"))
	assert.ErrorIs(t, err, ErrOutsideRoot)

	link := filepath.Join(root, "link.zip")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	_, err = ConfineAbsPath(root, link)
	assert.ErrorIs(t, err, ErrOutsideRoot)

	dangling := filepath.Join(root, "dangling.zip")
	require.NoError(t, os.Symlink(filepath.Join(outside, "gone.zip"), dangling))
	_, err = ConfineAbsPath(root, dangling)
	assert.Error(t, err)
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.zip")
	require.NoError(t, os.WriteFile(f, nil, 0o600))

	assert.NoError(t, IsRegularFile(f))
	assert.Error(t, IsRegularFile(dir))
	assert.Error(t, IsRegularFile(filepath.Join(dir, "missing")))
}
