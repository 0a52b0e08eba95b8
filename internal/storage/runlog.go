// Package storage persists the run log in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         INTEGER NOT NULL,
	event      TEXT    NOT NULL,
	station    INTEGER NOT NULL DEFAULT 0,
	program    TEXT,
	duration_s INTEGER NOT NULL DEFAULT 0,
	active     INTEGER
);
CREATE INDEX IF NOT EXISTS run_log_at ON run_log(at);
`

// Entry is one stored run log line.
type Entry struct {
	ID       int64
	At       time.Time
	Event    logic.EventType
	Station  logic.StationID
	Program  string
	Duration time.Duration
	// Active is set for rain events only.
	Active *bool
}

// RunLog stores run log entries. It implements logic.LogSink.
type RunLog struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens or creates the run log database at path.
func Open(ctx context.Context, path string, log zerolog.Logger) (*RunLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: run log path is required", logic.ErrStorageUnavailable)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", logic.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", logic.ErrStorageUnavailable, path, err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 2000")
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", logic.ErrStorageUnavailable, err)
	}
	return &RunLog{db: db, log: log.With().Str("component", "runlog").Logger()}, nil
}

// Record appends a log entry for event.
func (r *RunLog) Record(ctx context.Context, e logic.Event) error {
	if r == nil || r.db == nil {
		return logic.ErrStorageUnavailable
	}
	var program any
	if !e.Program.IsNone() {
		program = e.Program.String()
	}
	var active any
	if e.Type == logic.EventRainSensor || e.Type == logic.EventRainDelay {
		active = e.Active
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_log(at, event, station, program, duration_s, active) VALUES(?,?,?,?,?,?)`,
		e.Timestamp.Unix(), string(e.Type), int(e.Station), program, int64(e.Duration/time.Second), active,
	)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", logic.ErrStorageUnavailable, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *RunLog) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, logic.ErrStorageUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, at, event, station, program, duration_s, active FROM run_log ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", logic.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			at      int64
			event   string
			station int
			program sql.NullString
			dur     int64
			active  sql.NullBool
		)
		if err := rows.Scan(&e.ID, &at, &event, &station, &program, &dur, &active); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", logic.ErrStorageUnavailable, err)
		}
		e.At = time.Unix(at, 0).UTC()
		e.Event = logic.EventType(event)
		e.Station = logic.StationID(station)
		e.Program = program.String
		e.Duration = time.Duration(dur) * time.Second
		if active.Valid {
			v := active.Bool
			e.Active = &v
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", logic.ErrStorageUnavailable, err)
	}
	return out, nil
}

// Prune deletes entries older than before and returns how many were removed.
func (r *RunLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, logic.ErrStorageUnavailable
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM run_log WHERE at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", logic.ErrStorageUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.log.Debug().Int64("rows", n).Time("before", before).Msg("pruned run log")
	}
	return n, nil
}

// Close closes the database.
func (r *RunLog) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
