// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/ManuGH/dosemux/internal/optimizer"
	"github.com/ManuGH/dosemux/internal/printfile"
)

// Response headers of POST /api/v1/optimize.
const (
	HeaderJobID = "X-Job-ID"
	HeaderCache = "X-Cache"
)

// upload is a print file received in a request body.
type upload struct {
	name string
	data []byte
}

// readUpload reads the body either raw or from the multipart field "file".
// The body is capped at MaxBodyBytes.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	up := upload{name: r.URL.Query().Get("name")}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		mr, err := r.MultipartReader()
		if err != nil {
			return up, fmt.Errorf("%w: %v", errMalformed, err)
		}
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return up, fmt.Errorf("%w: multipart field \"file\" missing", errMalformed)
			}
			if err != nil {
				return up, wrapRead(err)
			}
			if part.FormName() != "file" {
				_ = part.Close()
				continue
			}
			if up.name == "" {
				up.name = part.FileName()
			}
			up.data, err = io.ReadAll(part)
			_ = part.Close()
			if err != nil {
				return up, wrapRead(err)
			}
			break
		}
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return up, wrapRead(err)
		}
		up.data = data
	}

	if len(up.data) == 0 {
		return up, fmt.Errorf("%w: empty body", errMalformed)
	}
	up.name = filepath.Base(up.name)
	if up.name == "" || up.name == "." || up.name == string(filepath.Separator) {
		up.name = "upload.zip"
	}
	return up, nil
}

// wrapRead keeps body size errors intact and marks the rest malformed.
func wrapRead(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", errMalformed, err)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.deps.Optimizer.Optimize(r.Context(), jobs.Request{
		Source: jobs.SourceAPI,
		Name:   up.name,
		Data:   up.data,
	})
	if res.Record.ID != "" {
		w.Header().Set(HeaderJobID, res.Record.ID)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	cacheState := "miss"
	if res.Record.CacheHit {
		cacheState = "hit"
	}
	out := optimizer.OutputPath(up.name, s.cfg.OutputSuffix)
	w.Header().Set(HeaderCache, cacheState)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(out)}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Output)
}

// InspectResponse is the body of POST /api/v1/inspect.
type InspectResponse struct {
	Name   string   `json:"name"`
	Digest string   `json:"digest"`
	Files  []string `json:"slices"`
	// ReferenceError is set when settings name slices the archive lacks.
	ReferenceError string            `json:"reference_error,omitempty"`
	Summary        printfile.Summary `json:"summary"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a, err := printfile.ReadBytesLimit(up.data, s.cfg.MaxUncompressedBytes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := printfile.Summarize(a)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := InspectResponse{
		Name:    strings.TrimSpace(up.name),
		Digest:  jobs.Digest(up.data),
		Files:   a.ImageNames(),
		Summary: summary,
	}
	if err := a.CheckReferences(); err != nil {
		resp.ReferenceError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
