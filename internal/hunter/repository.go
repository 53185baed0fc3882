package hunter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is the history record of one automation run.
type Run struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Outcome         Outcome    `json:"outcome,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	ChannelSwitches int        `json:"channel_switches"`
	FinalState      State      `json:"final_state"`
	Threshold       float64    `json:"threshold"`
}

// GenerateID returns a new run ID.
func GenerateID() string {
	return uuid.New().String()
}

// Repository persists run history.
type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const runColumns = `id, started_at, ended_at, outcome, reason, channel_switches, final_state, threshold`

// CreateRun inserts a run as it starts.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		nullableTime(run.EndedAt),
		nullableString(string(run.Outcome)),
		nullableString(run.Reason),
		run.ChannelSwitches,
		string(run.FinalState),
		run.Threshold,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// FinishRun records how a run ended.
func (r *SQLiteRepository) FinishRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE runs SET
			ended_at = ?, outcome = ?, reason = ?, channel_switches = ?, final_state = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		nullableTime(run.EndedAt),
		nullableString(string(run.Outcome)),
		nullableString(run.Reason),
		run.ChannelSwitches,
		string(run.FinalState),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// maxListRuns caps a single history page.
const maxListRuns = 500

// ListRuns returns the most recent runs first. limit is clamped to [1, maxListRuns].
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxListRuns {
		limit = maxListRuns
	}

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning run: %w", scanErr)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var endedAt, outcome, reason sql.NullString
	var finalState string

	err := scanner.Scan(
		&run.ID,
		&startedAt,
		&endedAt,
		&outcome,
		&reason,
		&run.ChannelSwitches,
		&finalState,
		&run.Threshold,
	)
	if err != nil {
		return nil, err
	}

	if t, parseErr := time.Parse(timeLayout, startedAt); parseErr == nil {
		run.StartedAt = t
	}
	if endedAt.Valid {
		if t, parseErr := time.Parse(timeLayout, endedAt.String); parseErr == nil {
			run.EndedAt = &t
		}
	}
	run.Outcome = Outcome(outcome.String)
	run.Reason = reason.String
	run.FinalState = State(finalState)
	return &run, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
