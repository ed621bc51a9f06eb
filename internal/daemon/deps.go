// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Worker is a background task owned by the daemon. Run must return once
// ctx is cancelled; a non-nil error before that stops the daemon.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler

	// Workers run alongside the API server, e.g. the inbox watcher.
	Workers []Worker
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
