package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesWorkspaceDatabase(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()

	assert.FileExists(t, filepath.Join(dir, WorkspaceDir, "sprintline.db"))

	var fk int
	require.NoError(t, conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestExplicitFileWins(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "x.db")
	cfg := Config{Workspace: "ignored", File: file}
	assert.Equal(t, file, cfg.Path())

	conn, err := Open(cfg)
	require.NoError(t, err)
	conn.Close()
	assert.FileExists(t, file)
}
