// Package history stores one record per generation run so unchanged inputs
// can be skipped and past runs inspected.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Status is the outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// FileEntry describes one written artifact.
type FileEntry struct {
	Name   string `msgpack:"name" json:"name"`
	Size   int    `msgpack:"size" json:"size"`
	SHA256 string `msgpack:"sha256" json:"sha256"`
}

// WidgetEntry describes one widget of the run.
type WidgetEntry struct {
	ID    string `msgpack:"id" json:"id"`
	Kind  string `msgpack:"kind" json:"kind"`
	Error string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Manifest is the detail blob stored with each run.
type Manifest struct {
	Version string        `msgpack:"version" json:"version"`
	Files   []FileEntry   `msgpack:"files" json:"files"`
	Widgets []WidgetEntry `msgpack:"widgets" json:"widgets"`
	Uses    []string      `msgpack:"uses" json:"uses"`
	Errors  []string      `msgpack:"errors,omitempty" json:"errors,omitempty"`
}

// Run is one generation run.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	ConfigPath string    `json:"config_path"`
	InputHash  string    `json:"input_hash"`
	Status     Status    `json:"status"`
	Widgets    int       `json:"widgets"`
	Loads      int       `json:"loads"`
	Errors     int       `json:"errors"`
	Manifest   *Manifest `json:"manifest,omitempty"`
}

// Repository persists runs in the history database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a repository on a migrated history database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// Record inserts run.
func (r *Repository) Record(run *Run) error {
	var blob []byte
	if run.Manifest != nil {
		var err error
		if blob, err = msgpack.Marshal(run.Manifest); err != nil {
			return fmt.Errorf("failed to encode manifest: %w", err)
		}
	}

	_, err := r.db.Exec(`
		INSERT INTO runs (id, started_at, duration_ms, config_path, input_hash, status, widgets, loads, errors, manifest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UnixMilli(), run.DurationMS, run.ConfigPath, run.InputHash,
		string(run.Status), run.Widgets, run.Loads, run.Errors, blob)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	r.log.Debug().Str("run_id", run.ID).Str("status", string(run.Status)).Msg("Run recorded")
	return nil
}

const selectRun = `SELECT id, started_at, duration_ms, config_path, input_hash, status, widgets, loads, errors, manifest FROM runs`

// Get returns a run with its manifest.
func (r *Repository) Get(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(selectRun+` WHERE id = ?`, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// LastSuccessful returns the newest successful run for configPath.
func (r *Repository) LastSuccessful(configPath string) (*Run, error) {
	row := r.db.QueryRow(selectRun+` WHERE config_path = ? AND status = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		configPath, string(StatusSuccess))
	run, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last successful run: %w", err)
	}
	return run, nil
}

// List returns up to limit runs, newest first, without manifests.
func (r *Repository) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(selectRun+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Prune deletes runs that started before cutoff and returns how many were
// removed.
func (r *Repository) Prune(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner, withManifest bool) (*Run, error) {
	var (
		run       Run
		startedAt int64
		status    string
		blob      []byte
	)
	err := s.Scan(&run.ID, &startedAt, &run.DurationMS, &run.ConfigPath, &run.InputHash,
		&status, &run.Widgets, &run.Loads, &run.Errors, &blob)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	run.Status = Status(status)

	if withManifest && len(blob) > 0 {
		var m Manifest
		if err := msgpack.Unmarshal(blob, &m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest of run %s: %w", run.ID, err)
		}
		run.Manifest = &m
	}
	return &run, nil
}
