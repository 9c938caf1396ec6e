package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	WorkspaceDir = ".sprintline"
	fileName     = "sprintline.db"

	defaultBusyTimeout = 5 * time.Second
)

// Config locates the database. File overrides the workspace-derived path.
type Config struct {
	Workspace   string
	File        string
	BusyTimeout time.Duration
}

// Path returns the database file for cfg.
func (c Config) Path() string {
	if c.File != "" {
		return c.File
	}
	return filepath.Join(orDot(c.Workspace), WorkspaceDir, fileName)
}

func (c Config) dsn() string {
	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", timeout.Milliseconds()))
	// Write transactions take the lock at BEGIN so two engines racing on the
	// same row surface as a version conflict, not SQLITE_BUSY mid-update.
	q.Set("_txlock", "immediate")
	return "file:" + c.Path() + "?" + q.Encode()
}

// EnsureWorkspace creates the workspace state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(orDot(workspace), WorkspaceDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", path, err)
	}
	return path, nil
}

// Open opens and pings the SQLite database.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
	} else if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.Path(), err)
	}
	return conn, nil
}

func orDot(workspace string) string {
	if workspace == "" {
		return "."
	}
	return workspace
}
