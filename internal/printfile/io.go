// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package printfile

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// DefaultMaxUncompressed bounds the total decompressed size of an archive
// read without an explicit limit.
const DefaultMaxUncompressed int64 = 1 << 30

// entryTime is stamped on every written member so identical content yields
// identical archives.
var entryTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Read opens and parses the print file at path.
func Read(path string) (*Archive, error) {
	// #nosec G304 -- print file paths are provided by the operator
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open print file: %w", err)
	}
	defer func() { _ = zr.Close() }()
	return readZip(&zr.Reader, DefaultMaxUncompressed)
}

// ReadBytes parses a print file held in memory.
func ReadBytes(data []byte) (*Archive, error) {
	return ReadBytesLimit(data, DefaultMaxUncompressed)
}

// ReadBytesLimit parses a print file held in memory, failing with
// ErrTooLarge once its members decompress past limit bytes in total. A
// non-positive limit uses DefaultMaxUncompressed.
func ReadBytesLimit(data []byte, limit int64) (*Archive, error) {
	return ReadFromLimit(bytes.NewReader(data), int64(len(data)), limit)
}

// ReadFrom parses a print file from r.
func ReadFrom(r io.ReaderAt, size int64) (*Archive, error) {
	return ReadFromLimit(r, size, DefaultMaxUncompressed)
}

// ReadFromLimit is ReadFrom with an explicit uncompressed size budget.
func ReadFromLimit(r io.ReaderAt, size, limit int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open print file: %w", err)
	}
	if limit <= 0 {
		limit = DefaultMaxUncompressed
	}
	return readZip(zr, limit)
}

func readZip(zr *zip.Reader, budget int64) (*Archive, error) {
	a := &Archive{slices: make(map[string][]byte)}
	var settings []byte
	found := false

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readMember(f, budget)
		if err != nil {
			return nil, err
		}
		budget -= int64(len(data))
		name := path.Clean(f.Name)
		switch {
		case name == SettingsName:
			settings, found = data, true
		case strings.HasPrefix(name, SlicesDir):
			a.slices[strings.TrimPrefix(name, SlicesDir)] = data
		default:
			a.extra = append(a.extra, Entry{Name: f.Name, Data: data})
		}
	}
	if !found {
		return nil, ErrNoSettings
	}
	ps, err := ParseSettings(settings)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", SettingsName, err)
	}
	a.Settings = ps
	return a, nil
}

// readMember reads f, failing with ErrTooLarge past budget bytes. The
// declared size is checked first; the limited read catches headers that lie.
func readMember(f *zip.File, budget int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(budget) {
		return nil, fmt.Errorf("%w: %s declares %d bytes", ErrTooLarge, f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, budget+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if int64(len(data)) > budget {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
	}
	return data, nil
}

// MarshalSettings renders the settings document as indented JSON.
func MarshalSettings(ps *PrintSettings) ([]byte, error) {
	compact, err := json.Marshal(ps)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", SettingsName, err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indent %s: %w", SettingsName, err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// WriteTo writes a as a zip archive: settings first, then slices sorted by
// name, then pass-through entries sorted by name.
func WriteTo(w io.Writer, a *Archive) error {
	settings, err := MarshalSettings(a.Settings)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	if err := writeMember(zw, SettingsName, settings, zip.Deflate); err != nil {
		return err
	}
	for _, name := range a.ImageNames() {
		data, _ := a.ImagePNG(name)
		// PNG is already deflated
		if err := writeMember(zw, SlicesDir+name, data, zip.Store); err != nil {
			return err
		}
	}
	extra := a.Extra()
	sort.Slice(extra, func(i, j int) bool { return extra[i].Name < extra[j].Name })
	for _, e := range extra {
		if err := writeMember(zw, e.Name, e.Data, zip.Deflate); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalise zip: %w", err)
	}
	return nil
}

func writeMember(zw *zip.Writer, name string, data []byte, method uint16) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: entryTime})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Bytes renders a as zip bytes.
func Bytes(a *Archive) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTo(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write atomically writes a to path using renameio: the archive only
// appears at path once it is complete and synced.
func Write(path string, a *Archive) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending print file: %w", err)
	}
	// no-op once committed
	defer func() { _ = pending.Cleanup() }()

	if err := WriteTo(pending, a); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace print file: %w", err)
	}
	return nil
}
