package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("store: run not found")

// Run kinds.
const (
	KindSolve    = "solve"
	KindSend     = "send"
	KindScramble = "scramble"
)

// StateRunning marks a run that has not been finished.
const StateRunning = "running"

// Run is one actuation run.
type Run struct {
	RunID     string
	Kind      string
	StartedAt time.Time
	EndedAt   *time.Time
	Facelets  string
	Solution  string
	Total     int
	Acked     int
	FailedAt  *int
	State     string
	Error     string
}

// Outcome is what a finished run reports.
type Outcome struct {
	State    string
	Acked    int
	FailedAt int // -1 when no command failed
	Err      error
}

// RunRepository provides access to the runs table.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create starts a run and returns its id.
func (r *RunRepository) Create(kind, facelets, solution string, total int) (string, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(`
		INSERT INTO runs (run_id, kind, started_at, facelets, solution, total, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, kind, formatTime(time.Now()), nullString(facelets), nullString(solution), total, StateRunning)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// Finish records the outcome of a run.
func (r *RunRepository) Finish(runID string, out Outcome) error {
	var failedAt any
	if out.FailedAt >= 0 {
		failedAt = out.FailedAt
	}
	var errText any
	if out.Err != nil {
		errText = out.Err.Error()
	}

	res, err := r.db.Exec(`
		UPDATE runs SET ended_at = ?, acked = ?, failed_at = ?, state = ?, error = ?
		WHERE run_id = ?
	`, formatTime(time.Now()), out.Acked, failedAt, out.State, errText, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Get returns a run by id.
func (r *RunRepository) Get(runID string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT run_id, kind, started_at, ended_at, facelets, solution, total, acked, failed_at, state, error
		FROM runs WHERE run_id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// Recent returns up to limit runs, newest first.
func (r *RunRepository) Recent(limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT run_id, kind, started_at, ended_at, facelets, solution, total, acked, failed_at, state, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                Run
		started            string
		ended              sql.NullString
		facelets, solution sql.NullString
		failedAt           sql.NullInt64
		errText            sql.NullString
	)
	if err := s.Scan(&run.RunID, &run.Kind, &started, &ended, &facelets, &solution,
		&run.Total, &run.Acked, &failedAt, &run.State, &errText); err != nil {
		return nil, err
	}

	t, err := parseTime(started)
	if err != nil {
		return nil, err
	}
	run.StartedAt = t
	if ended.Valid {
		t, err := parseTime(ended.String)
		if err != nil {
			return nil, err
		}
		run.EndedAt = &t
	}
	if failedAt.Valid {
		v := int(failedAt.Int64)
		run.FailedAt = &v
	}
	run.Facelets = facelets.String
	run.Solution = solution.String
	run.Error = errText.String
	return &run, nil
}

// Duration returns the run's wall time, zero while it is running.
func (run *Run) Duration() time.Duration {
	if run.EndedAt == nil {
		return 0
	}
	return run.EndedAt.Sub(run.StartedAt)
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
