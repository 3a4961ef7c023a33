/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	applog "goslides/internal/log"
	"goslides/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	SQLiteFileName = "goslides.sqlite"
	// DefaultKeepRevisions bounds the revision archive per key.
	DefaultKeepRevisions = 20

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2

	opTimeout = 5 * time.Second
)

// ErrClosed is returned by operations on a closed SQLite store.
var ErrClosed = errors.New("sqlite store is closed")

// language=SQL
// dialect=SQLite
const selectValueSQL = `SELECT value FROM kv WHERE key = ?`

// language=SQL
// dialect=SQLite
const upsertValueSQL = `INSERT INTO kv(key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// language=SQL
// dialect=SQLite
const insertRevisionSQL = `INSERT INTO revisions(key, ts, value) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, ts, value FROM revisions WHERE key = ? ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM revisions WHERE key = ? AND id NOT IN (
	SELECT id FROM revisions WHERE key = ? ORDER BY id DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const deleteValueSQL = `DELETE FROM kv WHERE key = ?`

// language=SQL
// dialect=SQLite
const deleteRevisionsSQL = `DELETE FROM revisions WHERE key = ?`

// Revision is one archived value of a key.
type Revision struct {
	ID    int64
	Key   string
	At    time.Time
	Value string
}

// SQLite keeps the current text of each key in a kv table and archives every
// write in revisions, pruned to the newest keep rows per key.
type SQLite struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	keep   int
	closed bool
	now    func() time.Time
	log    *slog.Logger
}

// SQLitePath returns the database file used for dir.
func SQLitePath(dir string) string { return filepath.Join(dir, SQLiteFileName) }

// OpenSQLite opens (or creates) <dir>/goslides.sqlite, enables WAL, ensures the
// meta/version tables and runs migrations. A database that cannot be opened or
// fails quick_check is copied to backups/ and recreated empty.
func OpenSQLite(dir string, keep int) (*SQLite, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.Error("create storage dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if keep <= 0 {
		keep = DefaultKeepRevisions
	}
	path := SQLitePath(dir)

	db, err := openDB(path)
	if err == nil && !healthy(db) {
		_ = db.Close()
		err = errors.New("quick_check failed")
	}
	if err != nil {
		l.Warn("database unusable, recreating", slog.Any("err", err))
		backupDBFile(path)
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			_ = os.Remove(p)
		}
		if db, err = openDB(path); err != nil {
			l.Error("sqlite open failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Info("sqlite ready", slog.String("path", path))
	return &SQLite{db: db, path: path, keep: keep, now: time.Now, log: applog.WithComponent("storage").With(slog.String("backend", "sqlite"))}, nil
}

func openDB(path string) (*sql.DB, error) {
	// Shared cache plus busy timeout; SQLite URIs want forward slashes.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func healthy(db *sql.DB) bool {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(chk), "ok")
}

func backupDBFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), time.Now().Format(backupStamp)))
	if _, err := os.Stat(path); err == nil {
		_ = copyFile(path, bak)
	}
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep schema as is; runMigrations moves it forward
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS revisions (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			key   TEXT NOT NULL,
			ts    TEXT NOT NULL,
			value TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_key ON revisions(key, id);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// v1 had no archive; seed it with the current value of every key.
			stmts = []string{
				`INSERT INTO revisions(key, ts, value)
					SELECT key, updated_at, value FROM kv
					WHERE key NOT IN (SELECT DISTINCT key FROM revisions);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// Path returns the database file.
func (s *SQLite) Path() string { return s.path }

// DB exposes the handle for diagnostics and tests.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var v string
	err := s.db.QueryRowContext(ctx, selectValueSQL, key).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("read %q: %w", key, err)
	}
	return v, true, nil
}

// Set upserts the value, archives it as a revision and prunes older revisions
// in one transaction.
func (s *SQLite) Set(key, text string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	ts := s.now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertValueSQL, key, text, ts); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, insertRevisionSQL, key, ts, text); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("archive %q: %w", key, err)
	}
	res, err := tx.ExecContext(ctx, pruneRevisionsSQL, key, key, s.keep)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prune %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Debug("pruned revisions", slog.String("key", key), slog.Int64("n", n))
	}
	return nil
}

// Remove deletes the value and its revisions.
func (s *SQLite) Remove(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove: %w", err)
	}
	for _, q := range []string{deleteValueSQL, deleteRevisionsSQL} {
		if _, err := tx.ExecContext(ctx, q, key); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("remove %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// ListRevisions returns up to limit archived values of key, newest first.
func (s *SQLite) ListRevisions(ctx context.Context, key string, limit int) ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = s.keep
	}
	rows, err := s.db.QueryContext(ctx, listRevisionsSQL, key, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		r := Revision{Key: key}
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.Value); err != nil {
			return nil, err
		}
		// the value is still useful when the stamp is unreadable
		r.At, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database. Further calls return ErrClosed.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
