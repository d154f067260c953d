// Package journal persists an audit trail of sync runs: one row per run and
// one row per mutating action, in an SQLite database. The engine writes
// through a best-effort recorder, so a broken journal never fails a sync.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/nilaysetiya/dirsync-go/internal/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run statuses stored in the runs.status column.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Journal owns the audit database.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the journal database at path and applies
// pending schema migrations.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}

	// Single writer: the engine is synchronous and so is the journal.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, logger: logger}, nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("journal: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("journal: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("journal: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("journal: applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Run is one sync run's journal handle. It implements engine.Recorder.
type Run struct {
	ID      string
	journal *Journal
}

// BeginRun inserts a run row and returns its handle.
func (j *Journal) BeginRun(ctx context.Context, dir1, dir2 string) (*Run, error) {
	id := uuid.NewString()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, dir1, dir2, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, dir1, dir2, time.Now().UnixNano(), StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("journal: begin run: %w", err)
	}

	return &Run{ID: id, journal: j}, nil
}

// RecordAction inserts one action row. Failures are logged and swallowed:
// journaling never fails a sync.
func (r *Run) RecordAction(action engine.ActionType, path, detail string) {
	_, err := r.journal.db.ExecContext(context.Background(),
		`INSERT INTO actions (run_id, action, path, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, string(action), path, detail, time.Now().UnixNano())
	if err != nil {
		r.journal.logger.Warn("journal: cannot record action",
			"action", string(action), "path", path, "error", err)
	}
}

// Finish marks the run row with its terminal status.
func (r *Run) Finish(ctx context.Context, status string) error {
	_, err := r.journal.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UnixNano(), status, r.ID)
	if err != nil {
		return fmt.Errorf("journal: finish run %s: %w", r.ID, err)
	}

	return nil
}

// RunRow is one row of the runs table.
type RunRow struct {
	ID         string
	Dir1, Dir2 string
	StartedAt  time.Time
	FinishedAt time.Time // zero when still running
	Status     string
	Actions    int
}

// RecentRuns returns up to limit runs, newest first, with action counts.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT r.id, r.dir1, r.dir2, r.started_at, r.finished_at, r.status,
		        (SELECT COUNT(*) FROM actions a WHERE a.run_id = r.id)
		 FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: listing runs: %w", err)
	}
	defer rows.Close()

	var result []RunRow

	for rows.Next() {
		var (
			r        RunRow
			started  int64
			finished sql.NullInt64
		)

		if err := rows.Scan(&r.ID, &r.Dir1, &r.Dir2, &started, &finished, &r.Status, &r.Actions); err != nil {
			return nil, fmt.Errorf("journal: scanning run row: %w", err)
		}

		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}

		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating run rows: %w", err)
	}

	return result, nil
}

// ActionRow is one row of the actions table.
type ActionRow struct {
	Action    string
	Path      string
	Detail    string
	CreatedAt time.Time
}

// ActionsForRun returns a run's actions in insertion order.
func (j *Journal) ActionsForRun(ctx context.Context, runID string) ([]ActionRow, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT action, path, detail, created_at FROM actions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: listing actions: %w", err)
	}
	defer rows.Close()

	var result []ActionRow

	for rows.Next() {
		var (
			a       ActionRow
			detail  sql.NullString
			created int64
		)

		if err := rows.Scan(&a.Action, &a.Path, &detail, &created); err != nil {
			return nil, fmt.Errorf("journal: scanning action row: %w", err)
		}

		a.Detail = detail.String
		a.CreatedAt = time.Unix(0, created)
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating action rows: %w", err)
	}

	return result, nil
}
