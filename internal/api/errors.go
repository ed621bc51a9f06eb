// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"image"
	"net/http"

	"github.com/ManuGH/dosemux/internal/jobs"
	"github.com/ManuGH/dosemux/internal/layout"
	"github.com/ManuGH/dosemux/internal/log"
	"github.com/ManuGH/dosemux/internal/mask"
	"github.com/ManuGH/dosemux/internal/printfile"
	"github.com/ManuGH/dosemux/internal/render"
	"github.com/ManuGH/dosemux/internal/validate"
)

// Error codes returned in the "error" field.
const (
	codeMalformed        = "malformed_input"
	codeTooLarge         = "body_too_large"
	codeInvalidPrintFile = "invalid_print_file"
	codeInvalidLayout    = "invalid_layout"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeUnavailable      = "unavailable"
	codeInternal         = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// errMalformed marks request errors the client can fix by sending a
// well-formed body or query.
var errMalformed = errors.New("malformed request")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	var (
		tooLarge   *http.MaxBytesError
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		validation validate.ValidationError
	)
	switch {
	case errors.As(err, &tooLarge),
		errors.Is(err, printfile.ErrTooLarge),
		errors.Is(err, mask.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, codeTooLarge
	case errors.Is(err, errMalformed),
		errors.Is(err, zip.ErrFormat),
		errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, zip.ErrChecksum),
		errors.Is(err, render.ErrTooManyLayers):
		return http.StatusBadRequest, codeMalformed
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, layout.ErrGroupExists),
		errors.Is(err, layout.ErrGroupNotFound),
		errors.Is(err, layout.ErrComponentNotFound),
		errors.Is(err, layout.ErrInvalidColor),
		errors.Is(err, layout.ErrInvalidExposure),
		errors.As(err, &validation):
		return http.StatusUnprocessableEntity, codeInvalidLayout
	case errors.Is(err, printfile.ErrNoSettings),
		errors.Is(err, printfile.ErrMissingImage),
		errors.Is(err, printfile.ErrMissingKey),
		errors.Is(err, printfile.ErrInvalidValue),
		errors.Is(err, mask.ErrSizeMismatch),
		errors.Is(err, image.ErrFormat),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return http.StatusUnprocessableEntity, codeInvalidPrintFile
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// respondError logs server-side failures and writes the classified error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "request.failed").
			Str(log.FieldPath, r.URL.Path).
			Msg("request failed")
		detail = "internal server error"
	}
	writeError(w, r, status, code, detail)
}
