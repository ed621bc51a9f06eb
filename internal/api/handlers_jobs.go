// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"

	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/go-chi/chi/v5"
)

// JobsResponse is the body of GET /api/v1/jobs.
type JobsResponse struct {
	Jobs  []jobs.Record `json:"jobs"`
	Limit int           `json:"limit"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "job history is disabled")
		return
	}
	limit := DefaultJobsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, codeMalformed, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxJobsLimit)
	}

	recs, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JobsResponse{Jobs: recs, Limit: limit})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "job history is disabled")
		return
	}
	rec, err := s.deps.History.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
