package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskatlas/taskatlas/atlas/config"
)

func TestFilePath(t *testing.T) {
	path, ok := filePath("file:.taskatlas/atlas.db")
	require.True(t, ok)
	assert.Equal(t, ".taskatlas/atlas.db", path)

	path, ok = filePath("file:/tmp/x.db?_journal_mode=WAL")
	require.True(t, ok)
	assert.Equal(t, "/tmp/x.db", path)

	_, ok = filePath("libsql://atlas-prod.turso.io")
	assert.False(t, ok)
}

func TestBuildDSN_File(t *testing.T) {
	dsn, err := buildDSN(&config.DatabaseConfig{DSN: "file:/tmp/atlas.db"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "file:/tmp/atlas.db?")
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_foreign_keys=1")
}

func TestBuildDSN_HostedWithAuthToken(t *testing.T) {
	dsn, err := buildDSN(&config.DatabaseConfig{
		DSN:       "libsql://atlas-prod.turso.io",
		AuthToken: "secret-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "libsql://atlas-prod.turso.io?authToken=secret-token", dsn)
}

func TestBuildDSN_HostedWithoutToken(t *testing.T) {
	dsn, err := buildDSN(&config.DatabaseConfig{DSN: "libsql://atlas-prod.turso.io"})
	require.NoError(t, err)
	assert.Equal(t, "libsql://atlas-prod.turso.io", dsn)
}

func TestEnsureDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "atlas.db")

	require.NoError(t, ensureDatabaseFile(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	// Idempotent on an existing file.
	require.NoError(t, ensureDatabaseFile(path))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
