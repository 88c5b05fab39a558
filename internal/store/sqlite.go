// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite.
// ABOUTME: Provides endpoint persistence with automatic schema creation.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the endpoint table if it does not exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS endpoints (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		fallback_url TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'unknown',
		registered_at TIMESTAMP NOT NULL,
		last_health_check TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_endpoints_url ON endpoints(url);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveEndpoint inserts or updates an endpoint record.
func (s *SQLiteStore) SaveEndpoint(ctx context.Context, ep *Endpoint) error {
	if ep.RegisteredAt.IsZero() {
		ep.RegisteredAt = time.Now().UTC()
	}
	if ep.Status == "" {
		ep.Status = EndpointStatusUnknown
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO endpoints (id, name, url, fallback_url, enabled, status, registered_at, last_health_check)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			fallback_url = excluded.fallback_url,
			enabled = excluded.enabled,
			status = excluded.status,
			last_health_check = excluded.last_health_check`,
		ep.ID, ep.Name, ep.URL, ep.FallbackURL, boolToInt(ep.Enabled), ep.Status,
		ep.RegisteredAt, ep.LastHealthCheck,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEndpoint
		}
		return fmt.Errorf("saving endpoint: %w", err)
	}
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// GetEndpoint returns the endpoint with the given id.
func (s *SQLiteStore) GetEndpoint(ctx context.Context, id string) (*Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, url, fallback_url, enabled, status, registered_at, last_health_check
		FROM endpoints WHERE id = ?`, id)
	return scanEndpoint(row)
}

// GetEndpointByURL returns the endpoint with the given primary URL.
func (s *SQLiteStore) GetEndpointByURL(ctx context.Context, url string) (*Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, url, fallback_url, enabled, status, registered_at, last_health_check
		FROM endpoints WHERE url = ?`, url)
	return scanEndpoint(row)
}

// ListEndpoints returns all endpoints ordered by registration time.
func (s *SQLiteStore) ListEndpoints(ctx context.Context) ([]*Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, fallback_url, enabled, status, registered_at, last_health_check
		FROM endpoints ORDER BY registered_at`)
	if err != nil {
		return nil, fmt.Errorf("listing endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []*Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

// DeleteEndpoint removes the endpoint record.
func (s *SQLiteStore) DeleteEndpoint(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting endpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled flips the enabled flag.
func (s *SQLiteStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE endpoints SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	if err != nil {
		return fmt.Errorf("updating endpoint enabled flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus records a connection status and stamps the health-check time.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE endpoints SET status = ?, last_health_check = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating endpoint status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanEndpoint.
type scanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row scanner) (*Endpoint, error) {
	var ep Endpoint
	var enabled int
	var lastCheck sql.NullTime

	err := row.Scan(&ep.ID, &ep.Name, &ep.URL, &ep.FallbackURL, &enabled, &ep.Status,
		&ep.RegisteredAt, &lastCheck)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning endpoint: %w", err)
	}

	ep.Enabled = enabled != 0
	if lastCheck.Valid {
		t := lastCheck.Time
		ep.LastHealthCheck = &t
	}
	return &ep, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
