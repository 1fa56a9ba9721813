package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/stackpilot/stackpilot/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested deployment does not exist.
var ErrNotFound = errors.New("deployment not found")

// SQLiteStore persists deployment records in SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Init opens the database connection, enables WAL mode, and runs
// migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return s.migrate()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate applies the embedded schema migrations.
func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SaveDeployment upserts a deployment record and its log transcript.
// It implements engine.Store.
func (s *SQLiteStore) SaveDeployment(ctx context.Context, rec *engine.Record) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	outputs, err := json.Marshal(rec.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}
	errs, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	var siteURL *string
	if rec.SiteURL != "" {
		siteURL = &rec.SiteURL
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	query := `
		INSERT INTO deployments (session_id, stack_type, status, outputs, site_url, started_at, duration_ms, errors, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			stack_type = excluded.stack_type,
			status = excluded.status,
			outputs = excluded.outputs,
			site_url = excluded.site_url,
			started_at = excluded.started_at,
			duration_ms = excluded.duration_ms,
			errors = excluded.errors,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		rec.SessionID,
		string(rec.StackType),
		string(rec.Status),
		string(outputs),
		siteURL,
		rec.StartedAt,
		rec.Duration.Milliseconds(),
		string(errs),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}

	// The transcript is rewritten wholesale: a record is only saved at
	// terminal states, so partial log rows would be stale anyway.
	if _, err := tx.ExecContext(ctx, `DELETE FROM deployment_logs WHERE session_id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("failed to clear deployment logs: %w", err)
	}
	for i, line := range rec.Logs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO deployment_logs (session_id, seq, line) VALUES (?, ?, ?)`,
			rec.SessionID, i, line,
		)
		if err != nil {
			return fmt.Errorf("failed to save deployment log line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDeployment retrieves a deployment by session id.
func (s *SQLiteStore) GetDeployment(ctx context.Context, sessionID string) (*Deployment, error) {
	query := `
		SELECT session_id, stack_type, status, outputs, site_url, started_at, duration_ms, errors, created_at, updated_at
		FROM deployments
		WHERE session_id = ?
	`

	d := &Deployment{}
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&d.SessionID,
		&d.StackType,
		&d.Status,
		&d.Outputs,
		&d.SiteURL,
		&d.StartedAt,
		&d.DurationMs,
		&d.Errors,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	return d, nil
}

// ListDeployments lists deployments, most recent first.
func (s *SQLiteStore) ListDeployments(ctx context.Context, limit, offset int) ([]*Deployment, error) {
	query := `
		SELECT session_id, stack_type, status, outputs, site_url, started_at, duration_ms, errors, created_at, updated_at
		FROM deployments
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	deployments := []*Deployment{}
	for rows.Next() {
		d := &Deployment{}
		err := rows.Scan(
			&d.SessionID,
			&d.StackType,
			&d.Status,
			&d.Outputs,
			&d.SiteURL,
			&d.StartedAt,
			&d.DurationMs,
			&d.Errors,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// GetLogs retrieves a deployment's transcript in order.
func (s *SQLiteStore) GetLogs(ctx context.Context, sessionID string) ([]string, error) {
	query := `
		SELECT line FROM deployment_logs
		WHERE session_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment logs: %w", err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan log line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
