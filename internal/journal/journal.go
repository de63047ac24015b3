// Package journal keeps a durable record of cooldown runs and state
// transitions in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	start_k     REAL NOT NULL,
	ended_at    TEXT,
	end_k       REAL,
	end_state   TEXT,
	reason      TEXT
);
CREATE TABLE IF NOT EXISTS transitions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	at            TEXT NOT NULL,
	from_state    TEXT NOT NULL,
	to_state      TEXT NOT NULL,
	temperature_k REAL NOT NULL,
	reason        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS transitions_run ON transitions (run_id);
`

// ErrUnknownRun is returned by EndRun for a run that was never started.
var ErrUnknownRun = errors.New("unknown run")

// Transition is one recorded state change.
type Transition struct {
	RunID        string    `json:"run_id"`
	At           time.Time `json:"at"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	TemperatureK float64   `json:"temperature_k"`
	Reason       string    `json:"reason,omitempty"`
}

// Run is one cooldown run from Start to Stop, Off or Fault.
type Run struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	StartK    float64    `json:"start_k"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	EndK      float64    `json:"end_k,omitempty"`
	EndState  string     `json:"end_state,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Journal is a SQLite-backed run and transition log.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun records the start of a run.
func (j *Journal) StartRun(ctx context.Context, id string, at time.Time, tempK float64) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, start_k) VALUES (?, ?, ?)`,
		id, formatTime(at), tempK)
	if err != nil {
		return fmt.Errorf("start run %s: %w", id, err)
	}
	return nil
}

// EndRun records how a run finished.
func (j *Journal) EndRun(ctx context.Context, id string, at time.Time, tempK float64, state, reason string) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, end_k = ?, end_state = ?, reason = ? WHERE id = ?`,
		formatTime(at), tempK, state, reason, id)
	if err != nil {
		return fmt.Errorf("end run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end run %s: %w", id, ErrUnknownRun)
	}
	return nil
}

// RecordTransition appends a transition.
func (j *Journal) RecordTransition(ctx context.Context, t Transition) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO transitions (run_id, at, from_state, to_state, temperature_k, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.RunID, formatTime(t.At), t.From, t.To, t.TemperatureK, t.Reason)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// Recent returns up to limit transitions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Transition, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, at, from_state, to_state, temperature_k, reason
		 FROM transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var at string
		if err := rows.Scan(&t.RunID, &at, &t.From, &t.To, &t.TemperatureK, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if t.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Runs returns up to limit runs, most recently started first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, start_k, ended_at, end_k, end_state, reason
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		var ended, state, reason sql.NullString
		var endK sql.NullFloat64
		if err := rows.Scan(&r.ID, &started, &r.StartK, &ended, &endK, &state, &reason); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if ended.Valid {
			at, err := parseTime(ended.String)
			if err != nil {
				return nil, err
			}
			r.EndedAt = &at
		}
		r.EndK = endK.Float64
		r.EndState = state.String
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
