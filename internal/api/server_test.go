// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/dosemux/internal/cache"
	"github.com/ManuGH/dosemux/internal/health"
	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/ManuGH/dosemux/internal/mask"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testLayout = `{
  "width": 200,
  "height": 100,
  "groups": [
    {"name": "Base", "color": "#ff0000", "exposure": {"mode": "absolute", "value": 1500}},
    {"name": "Fine detail", "color": "#00ff00", "exposure": {"mode": "scale", "value": 2}}
  ],
  "components": [
    {"id": 1, "x": 0, "y": 0, "width": 50, "height": 50, "group": "Base"},
    {"id": 2, "x": 100, "y": 0, "width": 50, "height": 50, "group": "Fine detail"}
  ]
}`

type testEnv struct {
	srv     *httptest.Server
	history *jobs.History
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	ctx := context.Background()

	history, err := jobs.OpenHistory(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	store := cache.NewMemoryStore(0, 0)
	runner := jobs.NewRunner(jobs.RunnerConfig{CacheTTL: time.Hour, MaxUncompressedBytes: cfg.MaxUncompressedBytes}, store, history)

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewPingChecker("history", 0, history.Ping))
	hm.RegisterChecker(health.NewPingChecker("cache", 0, store.Ping))

	s := New(cfg, Deps{Optimizer: runner, History: history, Health: hm})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
		_ = history.Close()
	})
	return &testEnv{srv: srv, history: history}
}

func (e *testEnv) post(t *testing.T, path, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, contentType, bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// printFile returns a zip with one layer of two disjoint squares exposed for
// 1000 and 2500 ms.
func printFile(t *testing.T) []byte {
	t.Helper()
	setting := func(file string, ms float64) *printfile.Object {
		o := printfile.NewObject()
		printfile.SetImageFile(o, file)
		printfile.SetExposureMS(o, ms)
		return o
	}
	ps := printfile.NewPrintSettings()
	ps.Layers = append(ps.Layers, printfile.NewLayer([]*printfile.Object{
		setting("a.png", 1000),
		setting("b.png", 2500),
	}))
	a := printfile.NewArchive(ps)

	left := mask.New(32, 32)
	mask.FillRect(left, image.Rect(0, 0, 8, 8), 255)
	right := mask.New(32, 32)
	mask.FillRect(right, image.Rect(16, 16, 24, 24), 255)
	require.NoError(t, a.SetImage("a.png", left))
	require.NoError(t, a.SetImage("b.png", right))

	data, err := printfile.Bytes(a)
	require.NoError(t, err)
	return data
}

func zipWith(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestHealthEndpointsAndMetrics(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ready health.ReadinessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	assert.True(t, ready.Ready)
	assert.Contains(t, ready.Checks, "history")

	// Generate at least one labelled HTTP sample.
	env.get(t, "/api/v1/jobs")
	resp = env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dosemux_http_requests_total")
}

func TestOptimize_RawBodyThenCacheHit(t *testing.T) {
	env := newTestEnv(t, Config{})
	data := printFile(t)

	resp := env.post(t, "/api/v1/optimize?name=part.zip", "application/zip", data)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "miss", resp.Header.Get(HeaderCache))
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "part_optimized.zip")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	jobID := resp.Header.Get(HeaderJobID)
	require.NotEmpty(t, jobID)

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	a, err := printfile.ReadBytes(out)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a_opt_0.png", "a_opt_1.png"}, a.ImageNames())

	again := env.post(t, "/api/v1/optimize", "application/zip", data)
	require.Equal(t, http.StatusOK, again.StatusCode)
	assert.Equal(t, "hit", again.Header.Get(HeaderCache))

	rec, err := env.history.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.SourceAPI, rec.Source)
	assert.Equal(t, "part.zip", rec.Name)
}

func TestOptimize_Multipart(t *testing.T) {
	env := newTestEnv(t, Config{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("comment", "ignored"))
	fw, err := mw.CreateFormFile("file", "../../etc/print.zip")
	require.NoError(t, err)
	_, err = fw.Write(printFile(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := env.post(t, "/api/v1/optimize", mw.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename=print_optimized.zip`)
}

func TestOptimize_Errors(t *testing.T) {
	env := newTestEnv(t, Config{MaxBodyBytes: 4096})

	var multipartNoFile bytes.Buffer
	mw := multipart.NewWriter(&multipartNoFile)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	tests := []struct {
		name        string
		contentType string
		body        []byte
		status      int
		code        string
		jobID       bool
	}{
		{"empty", "application/zip", nil, http.StatusBadRequest, codeMalformed, false},
		{"not a zip", "application/zip", []byte("definitely not a zip"), http.StatusBadRequest, codeMalformed, true},
		{"no settings", "application/zip", zipWith(t, map[string]string{"slices/a.png": "x"}), http.StatusUnprocessableEntity, codeInvalidPrintFile, true},
		{"bad json", "application/zip", zipWith(t, map[string]string{printfile.SettingsName: "{"}), http.StatusUnprocessableEntity, codeInvalidPrintFile, true},
		{"missing slice", "application/zip", zipWith(t, map[string]string{
			printfile.SettingsName: `{"Layers":[{"Image settings list":[` +
				`{"Image file":"a.png","Layer exposure time (ms)":1000},` +
				`{"Image file":"b.png","Layer exposure time (ms)":2000}]}]}`,
		}), http.StatusUnprocessableEntity, codeInvalidPrintFile, true},
		{"null image settings", "application/zip", zipWith(t, map[string]string{
			printfile.SettingsName: `{"Layers":[{"Image settings list":[null]}]}`,
		}), http.StatusUnprocessableEntity, codeInvalidPrintFile, true},
		{"too large", "application/zip", bytes.Repeat([]byte("x"), 8192), http.StatusRequestEntityTooLarge, codeTooLarge, false},
		{"multipart without file", mw.FormDataContentType(), multipartNoFile.Bytes(), http.StatusBadRequest, codeMalformed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.post(t, "/api/v1/optimize", tt.contentType, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.jobID, resp.Header.Get(HeaderJobID) != "")
			body := decodeError(t, resp)
			assert.Equal(t, tt.code, body.Error)
			assert.Equal(t, resp.Header.Get("X-Request-ID"), body.RequestID)
		})
	}
}

func TestJobs(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.post(t, "/api/v1/optimize", "application/zip", printFile(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(HeaderJobID)

	resp = env.get(t, "/api/v1/jobs?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list JobsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 5, list.Limit)
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, id, list.Jobs[0].ID)
	assert.Equal(t, 1, list.Jobs[0].Stats.LayersChanged)

	resp = env.get(t, "/api/v1/jobs/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec jobs.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, jobs.StatusSucceeded, rec.Status)

	resp = env.get(t, "/api/v1/jobs/unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, codeNotFound, decodeError(t, resp).Error)

	resp = env.get(t, "/api/v1/jobs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobs_HistoryDisabled(t *testing.T) {
	s := New(Config{}, Deps{Optimizer: jobs.NewRunner(jobs.RunnerConfig{}, nil, nil)})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInspect(t *testing.T) {
	env := newTestEnv(t, Config{})
	data := printFile(t)

	resp := env.post(t, "/api/v1/inspect", "application/zip", data)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got InspectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, jobs.Digest(data), got.Digest)
	assert.Equal(t, []string{"a.png", "b.png"}, got.Files)
	assert.Equal(t, 1, got.Summary.Layers)
	assert.Equal(t, 2, got.Summary.Images)
	assert.InDelta(t, 3500, got.Summary.TotalExposureMS, 1e-9)
	assert.Empty(t, got.ReferenceError)
}

func TestInspect_InvalidPrintFile(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.post(t, "/api/v1/inspect", "application/zip", zipWith(t, map[string]string{
		printfile.SettingsName: `{"Layers":[{"Image settings list":[null]}]}`,
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, codeInvalidPrintFile, body.Error)
	assert.Contains(t, body.Detail, "is null")
}

func TestRender(t *testing.T) {
	env := newTestEnv(t, Config{RenderBaseExposureMS: 1000})

	resp := env.post(t, "/api/v1/render?layers=2", "application/json", []byte(testLayout))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	a, err := printfile.ReadBytes(data)
	require.NoError(t, err)
	require.Len(t, a.Settings.Layers, 2)
	assert.ElementsMatch(t, []string{"0_base.png", "0_fine_detail.png", "1_base.png", "1_fine_detail.png"}, a.ImageNames())

	ms, err := printfile.ExposureMS(a.Settings.Layers[0].Images[1])
	require.NoError(t, err)
	assert.InDelta(t, 2000, ms, 1e-9, "scale mode uses the request base exposure")
}

func TestRender_Errors(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.post(t, "/api/v1/render", "application/json", []byte(`{"width":`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.post(t, "/api/v1/render", "application/json", []byte(`{"bogus": 1}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.post(t, "/api/v1/render?layers=-1", "application/json", []byte(testLayout))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	unknownGroup := strings.Replace(testLayout, `"group": "Base"`, `"group": "Missing"`, 1)
	resp = env.post(t, "/api/v1/render", "application/json", []byte(unknownGroup))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, codeInvalidLayout, decodeError(t, resp).Error)
}

func TestResourceLimits(t *testing.T) {
	env := newTestEnv(t, Config{MaxUncompressedBytes: 16 << 10})

	huge := `{"width":100000,"height":100000,"groups":[],"components":[]}`
	resp := env.post(t, "/api/v1/render", "application/json", []byte(huge))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, codeInvalidLayout, decodeError(t, resp).Error)

	resp = env.post(t, "/api/v1/preview", "application/json", []byte(huge))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.post(t, fmt.Sprintf("/api/v1/render?layers=%d", MaxRenderLayers+1), "application/json", []byte(testLayout))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeMalformed, decodeError(t, resp).Error)

	resp = env.post(t, "/api/v1/preview?w=100000", "application/json", []byte(testLayout))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// compresses to a few hundred bytes, well under the body limit
	bomb := zipWith(t, map[string]string{
		printfile.SettingsName: `{"Layers":[]}`,
		"slices/a.png":         strings.Repeat("\x00", 64<<10),
	})
	for _, path := range []string{"/api/v1/inspect", "/api/v1/optimize"} {
		resp = env.post(t, path, "application/zip", bomb)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode, path)
		assert.Equal(t, codeTooLarge, decodeError(t, resp).Error, path)
	}
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.post(t, "/api/v1/preview?w=100&h=100", "application/json", []byte(testLayout))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 100)
	assert.LessOrEqual(t, img.Bounds().Dy(), 100)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.get(t, "/api/v2/nothing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, codeNotFound, decodeError(t, resp).Error)
}

func TestServer_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := New(Config{}, Deps{Optimizer: jobs.NewRunner(jobs.RunnerConfig{}, nil, nil)})
	srv := httptest.NewServer(s.Handler())
	resp, err := http.Post(srv.URL+"/api/v1/optimize", "application/zip", bytes.NewReader(printFile(t)))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv.Close()
	http.DefaultClient.CloseIdleConnections()
}
