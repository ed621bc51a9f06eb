// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/dosemux/internal/fsutil"
	"github.com/ManuGH/dosemux/internal/log"
	"github.com/ManuGH/dosemux/internal/metrics"
	"github.com/ManuGH/dosemux/internal/optimizer"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// FileProcessor optimizes one file on disk.
type FileProcessor interface {
	OptimizeFile(ctx context.Context, source, in, out string) (Record, error)
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Inbox  string
	Outbox string
	// RatePerSecond limits how many files start processing per second.
	// Non-positive means unlimited.
	RatePerSecond float64
	// Debounce is the quiet period after the last write before a file is
	// processed.
	Debounce time.Duration
	// ScanExisting queues print files already in the inbox at start.
	ScanExisting bool
	// OutputSuffix is appended to the input stem in the outbox.
	OutputSuffix string
	// QueueSize bounds files waiting for the worker.
	QueueSize int
}

// Watcher optimizes print files dropped into an inbox directory and writes
// the results to an outbox directory.
type Watcher struct {
	cfg       WatcherConfig
	processor FileProcessor
	limiter   *rate.Limiter

	mu        sync.Mutex
	processed int
	failed    int
}

// NewWatcher validates cfg and creates the outbox if needed.
func NewWatcher(cfg WatcherConfig, p FileProcessor) (*Watcher, error) {
	if cfg.Inbox == "" || cfg.Outbox == "" {
		return nil, errors.New("watch: inbox and outbox are required")
	}
	inbox, err := filepath.Abs(cfg.Inbox)
	if err != nil {
		return nil, err
	}
	outbox, err := filepath.Abs(cfg.Outbox)
	if err != nil {
		return nil, err
	}
	if inbox == outbox {
		return nil, fmt.Errorf("watch: inbox and outbox must differ (%s)", inbox)
	}
	if fi, err := os.Stat(inbox); err != nil {
		return nil, fmt.Errorf("watch: inbox: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("watch: inbox %s is not a directory", inbox)
	}
	if err := os.MkdirAll(outbox, 0o750); err != nil {
		return nil, fmt.Errorf("watch: create outbox: %w", err)
	}
	cfg.Inbox, cfg.Outbox = inbox, outbox
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	return &Watcher{
		cfg:       cfg,
		processor: p,
		limiter:   rate.NewLimiter(rateLimit(cfg.RatePerSecond), 1),
	}, nil
}

func rateLimit(perSecond float64) rate.Limit {
	if perSecond > 0 {
		return rate.Limit(perSecond)
	}
	return rate.Inf
}

// SetRate changes the processing rate of a running watcher.
func (w *Watcher) SetRate(perSecond float64) {
	w.limiter.SetLimit(rateLimit(perSecond))
}

// Counts returns how many files were processed and how many failed.
func (w *Watcher) Counts() (processed, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processed, w.failed
}

// isPrintFile reports whether name looks like a finished print file.
func isPrintFile(name string) bool {
	base := filepath.Base(name)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".zip")
}

// Run watches the inbox until ctx is cancelled. It returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "watch")

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.cfg.Inbox); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Inbox, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make(chan string, w.cfg.QueueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(ctx, ready)
	}()
	defer wg.Wait()

	pending := make(map[string]time.Time)
	if w.cfg.ScanExisting {
		existing, err := w.scan()
		if err != nil {
			return err
		}
		now := time.Now()
		for _, p := range existing {
			pending[p] = now
		}
	}

	tick := w.cfg.Debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	logger.Info().
		Str(log.FieldEvent, "watch.start").
		Str("inbox", w.cfg.Inbox).
		Str("outbox", w.cfg.Outbox).
		Msg("watching inbox")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(log.FieldEvent, "watch.stop").Msg("watcher stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isPrintFile(ev.Name) {
				metrics.RecordWatchEvent("ignored")
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = time.Now().Add(w.cfg.Debounce)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("fsnotify error")

		case now := <-ticker.C:
			for _, p := range due(pending, now) {
				delete(pending, p)
				select {
				case ready <- p:
					metrics.RecordWatchEvent("queued")
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// due returns the pending paths whose quiet period has elapsed, sorted.
func due(pending map[string]time.Time, now time.Time) []string {
	var out []string
	for p, at := range pending {
		if !now.Before(at) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) scan() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.Inbox)
	if err != nil {
		return nil, fmt.Errorf("watch: scan inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && isPrintFile(e.Name()) {
			out = append(out, filepath.Join(w.cfg.Inbox, e.Name()))
		}
	}
	return out, nil
}

func (w *Watcher) work(ctx context.Context, ready <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-ready:
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			w.process(ctx, path)
		}
	}
}

// OutputFor returns the outbox path for an inbox file.
func (w *Watcher) OutputFor(path string) string {
	return optimizer.OutputPath(filepath.Join(w.cfg.Outbox, filepath.Base(path)), w.cfg.OutputSuffix)
}

func (w *Watcher) process(ctx context.Context, path string) {
	logger := log.WithComponentFromContext(ctx, "watch")
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		w.mu.Lock()
		w.failed++
		w.mu.Unlock()
		metrics.RecordWatchEvent("failed")
		logger.Error().
			Str(log.FieldEvent, "watch.panic").
			Interface("panic", rec).
			Bytes("stack", debug.Stack()).
			Str(log.FieldPath, path).
			Msg("watch: optimization panicked")
	}()
	if _, err := fsutil.ConfineAbsPath(w.cfg.Inbox, path); err != nil {
		metrics.RecordWatchEvent("ignored")
		logger.Warn().Err(err).Str(log.FieldPath, path).Msg("watch: skipping path outside inbox")
		return
	}
	if err := fsutil.IsRegularFile(path); err != nil {
		metrics.RecordWatchEvent("ignored")
		return
	}

	out := w.OutputFor(path)
	rec, err := w.processor.OptimizeFile(ctx, SourceWatch, path, out)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.failed++
		metrics.RecordWatchEvent("failed")
		logger.Error().Err(err).Str(log.FieldPath, path).Msg("watch: optimization failed")
		return
	}
	w.processed++
	metrics.RecordWatchEvent("processed")
	logger.Info().
		Str(log.FieldEvent, "watch.processed").
		Str(log.FieldJobID, rec.ID).
		Str(log.FieldPath, path).
		Str(log.FieldOutputPath, out).
		Msg("print file optimized")
}
