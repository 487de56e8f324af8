package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montarelab/rev-ai/internal/config"
)

func TestOpenSQLite_AppliesSchema(t *testing.T) {
	db, cleanup, err := OpenSQLite(MemoryPath)
	require.NoError(t, err)
	defer cleanup()

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Contains(t, tables, "review_runs")
	assert.Contains(t, tables, "reviewed_files")

	// Re-applying the schema is harmless.
	assert.NoError(t, db.RunMigrations())
}

func TestNewDatabase_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rev-ai.db")
	db, cleanup, err := NewDatabase(&config.DBConfig{Driver: DriverSQLite, Path: path})
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, DriverSQLite, db.Driver)
	assert.FileExists(t, path)
}

func TestNewDatabase_UnknownDriver(t *testing.T) {
	_, cleanup, err := NewDatabase(&config.DBConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.NotNil(t, cleanup)
}
