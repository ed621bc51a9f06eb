// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ManuGH/dosemux/internal/layout"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/ManuGH/dosemux/internal/render"
)

// readLayout decodes a layout document from the capped request body.
func (s *Server) readLayout(w http.ResponseWriter, r *http.Request) (*layout.Layout, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	l, err := layout.Parse(r.Body)
	if err != nil {
		return nil, wrapRead(err)
	}
	return l, nil
}

// queryInt parses key as an integer in [0, maxVal], returning def when
// the parameter is absent.
func queryInt(r *http.Request, key string, def, maxVal int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxVal {
		return 0, fmt.Errorf("%w: %s must be an integer between 0 and %d", errMalformed, key, maxVal)
	}
	return n, nil
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative number", errMalformed, key)
	}
	return f, nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	layers, err := queryInt(r, "layers", s.cfg.RenderLayers, MaxRenderLayers)
	if err != nil {
		respondError(w, r, err)
		return
	}
	base, err := queryFloat(r, "base_exposure_ms", s.cfg.RenderBaseExposureMS)
	if err != nil {
		respondError(w, r, err)
		return
	}
	l, err := s.readLayout(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	a, err := render.Render(r.Context(), l, render.Options{Layers: layers, BaseExposureMS: base})
	if err != nil {
		respondError(w, r, err)
		return
	}
	data, err := printfile.Bytes(a)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="layout.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	width, err := queryInt(r, "w", defaultPreviewWidth, layout.MaxCanvasSide)
	if err != nil {
		respondError(w, r, err)
		return
	}
	height, err := queryInt(r, "h", defaultPreviewHeight, layout.MaxCanvasSide)
	if err != nil {
		respondError(w, r, err)
		return
	}
	l, err := s.readLayout(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := l.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render.WritePreview(&buf, l, width, height); err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
