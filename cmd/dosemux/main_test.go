// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/dosemux/internal/config"
	"github.com/ManuGH/dosemux/internal/layout"
	"github.com/ManuGH/dosemux/internal/log"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "dosemux %v", args)
	return out
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DOSEMUX_DATA", dir)
	return dir
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	assert.Contains(t, out, "commit:")
}

func TestConfigValidateAndDump(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\ncache:\n  backend: redis\n  redisAddr: localhost:6379\n  redisPassword: hunter2\n"), 0o600))

	out := mustRun(t, "config", "validate", "--config", path)
	assert.Contains(t, out, "is valid")

	// $DOSEMUX_DATA/config.yaml is picked up without --config.
	out = mustRun(t, "config", "dump", "--format", "json")
	assert.NotContains(t, out, "hunter2")
	var dumped map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &dumped))
	assert.Equal(t, "debug", dumped["logLevel"])

	require.NoError(t, os.WriteFile(path, []byte("bogus: true\n"), 0o600))
	_, err := run(t, "config", "validate")
	assert.Error(t, err)
}

func TestLayoutRenderInspectOptimize(t *testing.T) {
	dir := isolate(t)
	plate := filepath.Join(dir, "plate.json")

	mustRun(t, "layout", "new", plate, "--width", "200", "--height", "100")
	_, err := run(t, "layout", "new", plate)
	assert.Error(t, err, "refuses to overwrite")

	mustRun(t, "layout", "group", "add", plate, "fast", "--mode", "absolute", "--value", "1000", "--color", "#ff0000")
	mustRun(t, "layout", "add", plate, "--group", "default", "--x", "0", "--y", "10", "--width", "50", "--height", "50")
	out := mustRun(t, "layout", "tile", plate, "--group", "fast", "--x", "100", "--y", "0",
		"--rows", "1", "--cols", "3", "--width", "40", "--height", "40", "--gap-x", "10")
	assert.Contains(t, out, "added 2 components", "third cell is clipped")

	mustRun(t, "layout", "align", plate, "top", "--area", "0,0,200,100")
	mustRun(t, "layout", "move", plate, "--ids", "1", "--x", "5")

	l, err := layout.Load(plate)
	require.NoError(t, err)
	require.Len(t, l.Components, 3)
	for _, c := range l.Components {
		assert.Equal(t, 0, c.Y)
	}
	c, ok := l.Component(1)
	require.True(t, ok)
	assert.Equal(t, 5, c.X)

	out = mustRun(t, "layout", "show", plate)
	assert.Contains(t, out, "Group: fast")

	printZip := filepath.Join(dir, "print.zip")
	preview := filepath.Join(dir, "preview.png")
	out = mustRun(t, "render", plate, "-o", printZip, "--base-exposure", "2000", "--preview", preview, "--set", `Light intensity=100`)
	assert.Contains(t, out, "1 layers, 2 masks")
	assert.FileExists(t, preview)

	out = mustRun(t, "inspect", printZip, "--json", "--layers")
	var sum printfile.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 1, sum.Layers)
	assert.Equal(t, 2, sum.Images)
	assert.Equal(t, 3000.0, sum.TotalExposureMS)
	require.Len(t, sum.PerLayer, 1)

	out = mustRun(t, "optimize", printZip)
	assert.Contains(t, out, "layers: 1 (1 changed)")
	optimized := filepath.Join(dir, "print_optimized.zip")
	a, err := printfile.Read(optimized)
	require.NoError(t, err)
	require.NoError(t, a.CheckReferences())
	assert.Len(t, a.Settings.Layers[0].Images, 2)

	out = mustRun(t, "inspect", optimized)
	assert.Contains(t, out, "total exposure: 2000 ms")
}

func TestLayoutGroupCommands(t *testing.T) {
	dir := isolate(t)
	plate := filepath.Join(dir, "plate.json")
	mustRun(t, "layout", "new", plate)
	mustRun(t, "layout", "group", "add", plate, "slow")
	mustRun(t, "layout", "add", plate, "--group", "default")
	mustRun(t, "layout", "group", "assign", plate, "slow", "--ids", "1")
	mustRun(t, "layout", "group", "rename", plate, "slow", "slower")
	mustRun(t, "layout", "group", "color", plate, "slower", "#00ff00")
	mustRun(t, "layout", "group", "exposure", plate, "slower", "1.5")

	l, err := layout.Load(plate)
	require.NoError(t, err)
	grp, ok := l.Group("slower")
	require.True(t, ok)
	assert.Equal(t, "#00ff00", grp.Color)
	assert.Equal(t, layout.Exposure{Mode: layout.ModeScale, Value: 1.5}, grp.Exposure)
	assert.Len(t, l.Members("slower"), 1)

	mustRun(t, "layout", "group", "delete", plate, "slower")
	l, err = layout.Load(plate)
	require.NoError(t, err)
	assert.Empty(t, l.Components)

	_, err = run(t, "layout", "group", "delete", plate, "slower")
	assert.ErrorIs(t, err, layout.ErrGroupNotFound)
	_, err = run(t, "layout", "delete", plate)
	assert.Error(t, err, "needs a selection")
}

func TestParseSettings(t *testing.T) {
	got, err := parseSettings([]string{"Light intensity=100", "Name=plain text", "Flags=[1,2]"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"Light intensity": 100.0,
		"Name":            "plain text",
		"Flags":           []any{1.0, 2.0},
	}, got)

	_, err = parseSettings([]string{"novalue"})
	assert.Error(t, err)
}

func TestIntList(t *testing.T) {
	ids, err := intList(" 1, 2,,3 ")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)
	_, err = intList("1,x")
	assert.Error(t, err)
}

func TestJobsRecordAndList(t *testing.T) {
	dir := isolate(t)
	plate := filepath.Join(dir, "plate.json")
	printZip := filepath.Join(dir, "print.zip")
	mustRun(t, "layout", "new", plate)
	mustRun(t, "layout", "add", plate)
	mustRun(t, "render", plate, "-o", printZip)
	mustRun(t, "optimize", printZip, "--record")

	out := mustRun(t, "jobs", "list")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "cli")

	out = mustRun(t, "jobs", "verify")
	assert.Contains(t, out, ": ok")

	out = mustRun(t, "jobs", "prune", "--older-than", "1h")
	assert.Contains(t, out, "deleted 0 jobs")
}

func TestBuildDaemon_ServesAPIAndStops(t *testing.T) {
	dir := t.TempDir()
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.Mkdir(inbox, 0o750))

	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.DataDir = dir
	cfg.History.Path = filepath.Join(dir, "history.db")
	cfg.API.ListenAddr = "127.0.0.1:0"
	cfg.Watch.Inbox = inbox
	cfg.Watch.Outbox = filepath.Join(dir, "outbox")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr, err := buildDaemon(ctx, cfg, "", log.WithComponent("test"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 5*time.Second, 10*time.Millisecond)

	client := &http.Client{Transport: &http.Transport{}, Timeout: 5 * time.Second}
	defer client.CloseIdleConnections()
	for _, path := range []string{"/readyz", "/api/v1/jobs"} {
		resp, err := client.Get("http://" + mgr.Addr() + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	assert.DirExists(t, cfg.Watch.Outbox)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
