// Package db manages libsql connections and schema migrations with goose.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/taskatlas/taskatlas/atlas/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect opens a libsql database for the configured DSN.
// File DSNs run in embedded mode; anything else is treated as a hosted
// database URL and gets the auth token appended.
func Connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if path, ok := filePath(cfg.DSN); ok {
		if err := ensureDatabaseFile(path); err != nil {
			return nil, err
		}
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("Connecting to libsql", "hosted", !strings.HasPrefix(dsn, "file:"))

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}

	if err := verifyConnection(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate brings the schema up to date using the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

// filePath extracts the filesystem path from a file: DSN.
func filePath(dsn string) (string, bool) {
	if !strings.HasPrefix(dsn, "file:") {
		return "", false
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path, true
}

// buildDSN produces the final driver DSN. File DSNs get the pragma
// tuning query string; hosted URLs get the auth token appended.
func buildDSN(cfg *config.DatabaseConfig) (string, error) {
	if path, ok := filePath(cfg.DSN); ok {
		return fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-64000&_temp_store=memory", path), nil
	}

	if cfg.AuthToken == "" {
		return cfg.DSN, nil
	}
	u, err := url.Parse(cfg.DSN)
	if err != nil {
		return "", fmt.Errorf("invalid hosted database URL %q: %w", cfg.DSN, err)
	}
	q := u.Query()
	q.Set("authToken", cfg.AuthToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func ensureDatabaseFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create database directory %s: %v", dir, err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("Database not found, creating a new one", "path", path)
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create db at path %s: %v", path, err)
		}
		file.Close()
	}
	return nil
}

// verifyConnection checks basic connectivity and the features the workflow
// index relies on.
func verifyConnection(db *sql.DB) error {
	ctx := context.Background()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("basic connectivity test failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("basic connectivity test failed: unexpected result %d", result)
	}

	// FTS5 backs workflow search
	if _, err := db.ExecContext(ctx, "CREATE VIRTUAL TABLE IF NOT EXISTS temp._fts5_test USING fts5(content)"); err != nil {
		slog.Warn("FTS5 test failed", "error", err)
	} else {
		_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS temp._fts5_test")
	}

	// JSON1 backs structured payload columns
	var jsonResult string
	if err := db.QueryRowContext(ctx, "SELECT json_extract('{\"test\":\"value\"}', '$.test')").Scan(&jsonResult); err != nil {
		slog.Warn("JSON1 test failed", "error", err)
	}

	return nil
}
