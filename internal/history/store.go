package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"nwbconv/internal/services"
)

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one conversion attempt.
type Run struct {
	ID           string
	Sources      []string
	MetadataPath string
	OutputPath   string
	Status       Status
	SizeBytes    int64
	FailureKind  string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration is the wall time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store records conversion runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "history database path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Begin records a new running conversion and returns its id.
func (s *Store) Begin(ctx context.Context, sources []string, metadataPath, outputPath string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, sources, metadata_path, output_path, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		strings.Join(sources, "\n"),
		metadataPath,
		outputPath,
		StatusRunning,
		formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Finish marks a run as succeeded.
func (s *Store) Finish(ctx context.Context, id string, sizeBytes int64) error {
	return s.complete(ctx, id, StatusSucceeded, sizeBytes, nil)
}

// Fail marks a run as failed and records the error classification.
func (s *Store) Fail(ctx context.Context, id string, runErr error) error {
	return s.complete(ctx, id, StatusFailed, 0, runErr)
}

func (s *Store) complete(ctx context.Context, id string, status Status, sizeBytes int64, runErr error) error {
	var kind, message sql.NullString
	if runErr != nil {
		kind = sql.NullString{String: services.FailureKind(runErr), Valid: true}
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, size_bytes = ?, failure_kind = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		status, sizeBytes, kind, message, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "history", "complete", "run "+id, nil)
	}
	return nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "history", "get", "run "+id, nil)
	}
	return run, err
}

// List returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + " ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
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

const selectRuns = `SELECT id, sources, metadata_path, output_path, status, size_bytes,
    failure_kind, error_message, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                  Run
		sources              string
		kind, message, ended sql.NullString
		started              string
	)
	if err := row.Scan(&run.ID, &sources, &run.MetadataPath, &run.OutputPath, &run.Status, &run.SizeBytes,
		&kind, &message, &started, &ended); err != nil {
		return nil, err
	}
	if sources != "" {
		run.Sources = strings.Split(sources, "\n")
	}
	run.FailureKind = kind.String
	run.ErrorMessage = message.String
	run.StartedAt = parseTime(started)
	if ended.Valid {
		run.FinishedAt = parseTime(ended.String)
	}
	return &run, nil
}

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
