// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists finished session reports in SQLite so past
// research can be listed and re-read.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/pkg/types"
)

const defaultListLimit = 20

// ErrNotFound is returned by Get for an unknown session ID.
var ErrNotFound = errors.New("session not found")

// Store manages the session history database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the history database at cfg.Path, creating its
// parent directory and schema if needed.
func Open(cfg types.HistoryConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.Path
	if path == "" {
		path = types.DefaultConfig().History.Path
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, logger: logger.With(zap.String("component", "history"))}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			stage TEXT NOT NULL,
			failed_in TEXT,
			failure_kind TEXT,
			candidates INTEGER NOT NULL,
			analyses INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			report TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_stage ON sessions(stage)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save stores r, replacing any earlier report with the same session ID.
func (s *Store) Save(ctx context.Context, r types.Report) error {
	if r.SessionID == "" {
		return errors.New("report has no session ID")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, query, stage, failed_in, failure_kind, candidates, analyses, started_at, finished_at, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			query=excluded.query, stage=excluded.stage, failed_in=excluded.failed_in,
			failure_kind=excluded.failure_kind, candidates=excluded.candidates,
			analyses=excluded.analyses, started_at=excluded.started_at,
			finished_at=excluded.finished_at, report=excluded.report`,
		r.SessionID, r.Query, string(r.Stage), string(r.FailedIn), string(r.FailureKind),
		len(r.Candidates), len(r.Analyses),
		formatTime(r.StartedAt), formatTime(r.FinishedAt), string(data),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", r.SessionID, err)
	}
	s.logger.Debug("session saved", zap.String("session_id", r.SessionID), zap.String("stage", string(r.Stage)))
	return nil
}

// Get returns the stored report for id.
func (s *Store) Get(ctx context.Context, id string) (types.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Report{}, fmt.Errorf("querying session %s: %w", id, err)
	}
	var r types.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return types.Report{}, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return r, nil
}

// ListOptions filters List.
type ListOptions struct {
	// Query matches sessions whose query contains it, case-insensitively.
	Query string

	// Stage keeps only sessions that ended in this stage.
	Stage types.Stage

	// Limit caps the result count. Zero uses the default (20).
	Limit int
}

// Summary is one row of the session listing.
type Summary struct {
	ID          string          `json:"id" yaml:"id"`
	Query       string          `json:"query" yaml:"query"`
	Stage       types.Stage     `json:"stage" yaml:"stage"`
	FailedIn    types.Stage     `json:"failed_in,omitempty" yaml:"failed_in,omitempty"`
	FailureKind types.ErrorKind `json:"failure_kind,omitempty" yaml:"failure_kind,omitempty"`
	Candidates  int             `json:"candidates" yaml:"candidates"`
	Analyses    int             `json:"analyses" yaml:"analyses"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time       `json:"finished_at" yaml:"finished_at"`
}

// List returns stored sessions, most recently started first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT id, query, stage, failed_in, failure_kind, candidates, analyses, started_at, finished_at
		FROM sessions WHERE 1=1`)
	if opts.Query != "" {
		qb.WriteString(` AND lower(query) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(opts.Query))+"%")
	}
	if opts.Stage != "" {
		qb.WriteString(` AND stage = ?`)
		args = append(args, string(opts.Stage))
	}
	qb.WriteString(` ORDER BY started_at DESC, id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum                 Summary
			stage, failedIn     string
			kind                string
			started, finishedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Query, &stage, &failedIn, &kind,
			&sum.Candidates, &sum.Analyses, &started, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sum.Stage = types.Stage(stage)
		sum.FailedIn = types.Stage(failedIn)
		sum.FailureKind = types.ErrorKind(kind)
		sum.StartedAt = parseTime(started)
		sum.FinishedAt = parseTime(finishedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// formatTime uses a fixed-width UTC layout so that text order matches
// time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05.000000000Z", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
