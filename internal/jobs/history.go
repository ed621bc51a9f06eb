// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/dosemux/internal/persistence/sqlite"
)

// History persists job records in SQLite.
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory opens (or creates) the history database at path.
func OpenHistory(ctx context.Context, path string) (*History, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	h := &History{db: db, path: path}
	if err := h.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *History) Path() string { return h.path }

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Ping checks the database connection.
func (h *History) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *History) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		digest TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK(status IN ('succeeded', 'failed')),
		error TEXT NOT NULL DEFAULT '',
		cache_hit INTEGER NOT NULL DEFAULT 0,
		shared INTEGER NOT NULL DEFAULT 0,
		input_bytes INTEGER NOT NULL DEFAULT 0,
		output_bytes INTEGER NOT NULL DEFAULT 0,
		output_path TEXT NOT NULL DEFAULT '',
		stats TEXT NOT NULL DEFAULT '{}',
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_started_at ON jobs(started_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_digest ON jobs(digest);
	`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// Insert stores a record. Inserting an existing ID is an error.
func (h *History) Insert(ctx context.Context, r Record) error {
	stats, err := json.Marshal(r.Stats)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO jobs (id, source, name, digest, status, error, cache_hit, shared,
		input_bytes, output_bytes, output_path, stats, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = h.db.ExecContext(ctx, query,
		r.ID, r.Source, r.Name, r.Digest, r.Status, r.Error, r.CacheHit, r.Shared,
		r.InputBytes, r.OutputBytes, r.OutputPath, string(stats),
		r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", r.ID, err)
	}
	return nil
}

const selectColumns = `id, source, name, digest, status, error, cache_hit, shared,
	input_bytes, output_bytes, output_path, stats, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		r                 Record
		stats             string
		started, finished int64
	)
	if err := s.Scan(&r.ID, &r.Source, &r.Name, &r.Digest, &r.Status, &r.Error, &r.CacheHit, &r.Shared,
		&r.InputBytes, &r.OutputBytes, &r.OutputPath, &stats, &started, &finished); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(stats), &r.Stats); err != nil {
		return Record{}, fmt.Errorf("decode stats of job %s: %w", r.ID, err)
	}
	r.StartedAt = time.Unix(0, started).UTC()
	r.FinishedAt = time.Unix(0, finished).UTC()
	return r, nil
}

// Get returns the record with the given ID or ErrJobNotFound.
func (h *History) Get(ctx context.Context, id string) (Record, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM jobs WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return r, err
}

// List returns up to limit records, newest first. A non-positive limit
// returns every record.
func (h *History) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM jobs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes records started before the cutoff and returns how many it
// deleted.
func (h *History) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM jobs WHERE started_at < ?`, before.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
