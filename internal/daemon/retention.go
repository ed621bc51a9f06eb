// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"time"

	"github.com/ManuGH/dosemux/internal/log"
)

// Pruner deletes history records started before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// RetentionWorker prunes history older than retention once at start and
// then every interval. A non-positive retention disables pruning.
func RetentionWorker(p Pruner, retention, interval time.Duration) Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return Worker{
		Name: "history-retention",
		Run: func(ctx context.Context) error {
			if retention <= 0 {
				<-ctx.Done()
				return nil
			}
			logger := log.WithComponent("retention")
			prune := func() {
				n, err := p.Prune(ctx, time.Now().Add(-retention))
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn().Err(err).Msg("history prune failed")
					}
					return
				}
				if n > 0 {
					logger.Info().Int64("deleted", n).Str(log.FieldEvent, "history.pruned").Msg("pruned job history")
				}
			}

			prune()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					prune()
				}
			}
		},
	}
}
