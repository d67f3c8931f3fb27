// Package db opens the per-workspace SQLite store kept under the
// hidden .tasklens directory.
package db

import (
	"database/sql"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	stateDir = ".tasklens"
	dbName   = "tasklens.db"
)

type Config struct {
	Workspace string
}

func stateRoot(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir)
}

// EnsureWorkspace creates the state directory if missing and returns
// its path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := stateRoot(workspace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(stateRoot(workspace), dbName)
}

// Open opens the workspace database. Foreign keys are enforced, and a
// busy timeout absorbs writer contention from concurrent requests.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return sql.Open("sqlite", "file:"+Path(cfg.Workspace)+"?"+q.Encode())
}
