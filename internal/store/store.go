// Package store provides SQLite-backed local state for the package
// toolchain: which packages are vendored into the workspace and which
// archives the content cache already holds.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Filename is the state database name under the toolchain home directory.
const Filename = "state.db"

// InstalledPackage records one package vendored into a workspace.
type InstalledPackage struct {
	Name        string
	Version     string
	Source      string
	Integrity   string
	Path        string
	InstalledAt time.Time
}

// Artifact records one fetched package tree held in the content cache.
type Artifact struct {
	Name      string
	Version   string
	Integrity string
	Path      string
	FetchedAt time.Time
}

// Store is the local state database. All methods are safe for concurrent
// use; installer workers record packages in parallel.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens (creating if necessary) the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the database schema.
func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS packages (
			name TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			source TEXT NOT NULL,
			integrity TEXT,
			install_path TEXT NOT NULL,
			installed_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create packages table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			integrity TEXT,
			cache_path TEXT NOT NULL,
			fetched_at DATETIME NOT NULL,
			PRIMARY KEY (name, version)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create artifacts table: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordInstall upserts the installed-package row for p.Name.
func (s *Store) RecordInstall(ctx context.Context, p InstalledPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packages (name, version, source, integrity, install_path, installed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			source = excluded.source,
			integrity = excluded.integrity,
			install_path = excluded.install_path,
			installed_at = excluded.installed_at
	`, p.Name, p.Version, p.Source, p.Integrity, p.Path, p.InstalledAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record install of %s: %w", p.Name, err)
	}
	return nil
}

// Installed returns the installed-package row for name, or nil when the
// package is not installed.
func (s *Store) Installed(ctx context.Context, name string) (*InstalledPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p InstalledPackage
	err := s.db.QueryRowContext(ctx, `
		SELECT name, version, source, integrity, install_path, installed_at
		FROM packages WHERE name = ?
	`, name).Scan(&p.Name, &p.Version, &p.Source, &p.Integrity, &p.Path, &p.InstalledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read install of %s: %w", name, err)
	}
	return &p, nil
}

// ListInstalled returns every installed package, ordered by name.
func (s *Store) ListInstalled(ctx context.Context) ([]InstalledPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, version, source, integrity, install_path, installed_at
		FROM packages ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list installs: %w", err)
	}
	defer rows.Close()

	var out []InstalledPackage
	for rows.Next() {
		var p InstalledPackage
		if err := rows.Scan(&p.Name, &p.Version, &p.Source, &p.Integrity, &p.Path, &p.InstalledAt); err != nil {
			return nil, fmt.Errorf("failed to scan install row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RemoveInstall deletes the installed-package row for name. It reports
// whether a row existed.
func (s *Store) RemoveInstall(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to remove install of %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordArtifact upserts the cache row for (a.Name, a.Version).
func (s *Store) RecordArtifact(ctx context.Context, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (name, version, integrity, cache_path, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET
			integrity = excluded.integrity,
			cache_path = excluded.cache_path,
			fetched_at = excluded.fetched_at
	`, a.Name, a.Version, a.Integrity, a.Path, a.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record artifact %s@%s: %w", a.Name, a.Version, err)
	}
	return nil
}

// Artifact returns the cache row for (name, version), or nil when the
// archive was never fetched.
func (s *Store) Artifact(ctx context.Context, name, ver string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a Artifact
	err := s.db.QueryRowContext(ctx, `
		SELECT name, version, integrity, cache_path, fetched_at
		FROM artifacts WHERE name = ? AND version = ?
	`, name, ver).Scan(&a.Name, &a.Version, &a.Integrity, &a.Path, &a.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s@%s: %w", name, ver, err)
	}
	return &a, nil
}

// HasArtifact reports whether the cache holds (name, version) with the given
// integrity. An empty integrity matches any cached copy.
func (s *Store) HasArtifact(ctx context.Context, name, ver, integrity string) (bool, error) {
	a, err := s.Artifact(ctx, name, ver)
	if err != nil || a == nil {
		return false, err
	}
	if integrity != "" && a.Integrity != integrity {
		return false, nil
	}
	return true, nil
}
