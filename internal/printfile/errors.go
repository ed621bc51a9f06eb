// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package printfile

import (
	"errors"
	"reflect"
)

var (
	// ErrNoSettings is returned when an archive has no print_settings.json.
	ErrNoSettings = errors.New("print_settings.json not found in archive")
	// ErrMissingImage is returned when settings reference a slice the archive lacks.
	ErrMissingImage = errors.New("referenced image not found")
	// ErrMissingKey is returned when a required settings key is absent.
	ErrMissingKey = errors.New("missing settings key")
	// ErrInvalidValue is returned when a settings value has the wrong type.
	ErrInvalidValue = errors.New("invalid settings value")
	// ErrTooLarge is returned when an archive decompresses past its budget.
	ErrTooLarge = errors.New("print file exceeds uncompressed size limit")
)

var objectType = reflect.TypeOf(Object{})
