// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldDuration  = "duration_ms"

	// Print file fields
	FieldLayer      = "layer"
	FieldLayers     = "layers"
	FieldImage      = "image"
	FieldImages     = "images"
	FieldExposureMS = "exposure_ms"
	FieldGroup      = "group"
	FieldDigest     = "digest"

	// Path / URL fields
	FieldPath       = "path"
	FieldOutputPath = "output_path"
	FieldRemote     = "remote"

	// HTTP fields
	FieldMethod = "method"
	FieldStatus = "status"
	FieldBytes  = "bytes"
)
