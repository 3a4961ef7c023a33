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
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestSQLite(t *testing.T, dir string, keep int) *SQLite {
	t.Helper()
	s, err := OpenSQLite(dir, keep)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_FreshDBIsCurrentSchema(t *testing.T) {
	s := openTestSQLite(t, t.TempDir(), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var schema int
	if err := s.DB().QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
	var mode string
	if err := s.DB().QueryRowContext(ctx, `PRAGMA journal_mode;`).Scan(&mode); err != nil || mode != "wal" {
		t.Fatalf("journal_mode = %q, %v", mode, err)
	}
}

func TestSQLite_SetArchivesAndPrunes(t *testing.T) {
	s := openTestSQLite(t, t.TempDir(), 3)
	for i := 0; i < 6; i++ {
		if err := s.Set("deck", fmt.Sprintf(`{"i":%d}`, i)); err != nil {
			t.Fatalf("Set %d: %v", i, err)
		}
	}
	v, ok, err := s.Get("deck")
	if err != nil || !ok || v != `{"i":5}` {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}
	revs, err := s.ListRevisions(context.Background(), "deck", 10)
	if err != nil {
		t.Fatalf("ListRevisions: %v", err)
	}
	if len(revs) != 3 {
		t.Fatalf("expected 3 revisions after pruning, got %d", len(revs))
	}
	if revs[0].Value != `{"i":5}` || revs[2].Value != `{"i":3}` {
		t.Fatalf("revisions not newest first: %+v", revs)
	}
	if revs[0].At.IsZero() {
		t.Fatalf("revision timestamp not parsed")
	}
}

func TestSQLite_RemoveAndMissing(t *testing.T) {
	s := openTestSQLite(t, t.TempDir(), 0)
	if _, ok, err := s.Get("nope"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	_ = s.Set("deck", `{}`)
	if err := s.Remove("deck"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get("deck"); ok {
		t.Fatalf("value survived Remove")
	}
	revs, _ := s.ListRevisions(context.Background(), "deck", 0)
	if len(revs) != 0 {
		t.Fatalf("revisions survived Remove: %d", len(revs))
	}
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLite(dir, 0)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = s.Set("deck", `{"kept":true}`)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := s.Get("deck"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get after Close: %v", err)
	}
	s2 := openTestSQLite(t, dir, 0)
	if v, ok, _ := s2.Get("deck"); !ok || v != `{"kept":true}` {
		t.Fatalf("reopen lost data: %q %v", v, ok)
	}
}

// TestSQLite_MigrateV1ToV2 builds a v1 database (kv only, no archive) by hand
// and checks that reopening seeds one revision per key.
func TestSQLite_MigrateV1ToV2(t *testing.T) {
	dir := t.TempDir()
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(SQLitePath(dir)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO kv(key, value, updated_at) VALUES('deck', '{"old":true}', '2020-01-02T00:00:00Z');`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	db.Close()

	s := openTestSQLite(t, dir, 0)
	var schema int
	if err := s.DB().QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != 2 {
		t.Fatalf("expected schema 2 after migration, got %d", schema)
	}
	revs, err := s.ListRevisions(ctx, "deck", 0)
	if err != nil || len(revs) != 1 || revs[0].Value != `{"old":true}` {
		t.Fatalf("expected seeded revision, got %+v %v", revs, err)
	}
	if want := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC); !revs[0].At.Equal(want) {
		t.Fatalf("revision ts = %v", revs[0].At)
	}
}

func TestSQLite_CorruptFileIsBackedUpAndRecreated(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(SQLitePath(dir), []byte("this is not a database, just junk bytes that fill a page"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := openTestSQLite(t, dir, 0)
	if err := s.Set("deck", `{}`); err != nil {
		t.Fatalf("Set on recreated db: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if err != nil || len(ents) == 0 {
		t.Fatalf("expected a backup of the corrupt file, err=%v", err)
	}
}
