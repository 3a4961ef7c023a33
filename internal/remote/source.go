/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package remote reads and publishes slide documents kept in a Postgres table,
// and exposes that table over a small authenticated HTTP API.
//
// Fetched text is untrusted: callers pass it through schema.Parse before
// loading it into a store.
package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	applog "goslides/internal/log"
)

// DefaultTable holds published decks unless configured otherwise.
const DefaultTable = "slides"

// ErrNotFound is returned when no deck has the requested id.
var ErrNotFound = errors.New("deck not found")

// Deck is one row of the decks table.
type Deck struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repo is what the HTTP server needs from a deck source.
type Repo interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]Deck, error)
	Fetch(ctx context.Context, id string) (string, error)
	Publish(ctx context.Context, id, text string) (int64, error)
}

// Source is a Postgres-backed deck table.
type Source struct {
	db    *sql.DB
	table string // quoted identifier
	log   *slog.Logger
}

var _ Repo = (*Source)(nil)

// Open connects through the pgx stdlib driver and pings the server.
func Open(ctx context.Context, dsn, table string) (*Source, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("remote dsn is required")
	}
	if strings.TrimSpace(table) == "" {
		table = DefaultTable
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Source{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		log:   applog.WithComponent("remote").With(slog.String("table", table)),
	}, nil
}

// DB exposes the handle for tests and diagnostics.
func (s *Source) DB() *sql.DB { return s.db }

func (s *Source) Close() error { return s.db.Close() }

func (s *Source) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// migrations are applied in order; each is recorded in schema_migrations.
func (s *Source) migrations() []string {
	return []string{
		// dialect=PostgreSQL
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			id         TEXT PRIMARY KEY,
			slide_json TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		// dialect=PostgreSQL
		`ALTER TABLE ` + s.table + ` ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1`,
	}
}

// Migrate creates the deck table and brings it up to date.
func (s *Source) Migrate(ctx context.Context) error {
	// dialect=PostgreSQL
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		tbl        TEXT NOT NULL,
		version    BIGINT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (tbl, version)
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations WHERE tbl = $1`, s.table)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for i, q := range s.migrations() {
		v := int64(i + 1)
		if applied[v] {
			continue
		}
		s.log.Info("applying migration", slog.Int64("version", v))
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(tbl, version) VALUES($1, $2)`, s.table, v); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", v, err)
		}
	}
	return nil
}

// Fetch returns the stored document text of id.
func (s *Source) Fetch(ctx context.Context, id string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT slide_json FROM `+s.table+` WHERE id = $1`, id).Scan(&text)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("fetch %q: %w", id, err)
	}
	return text, nil
}

// Publish upserts the document text of id and returns its new version.
func (s *Source) Publish(ctx context.Context, id, text string) (int64, error) {
	if strings.TrimSpace(id) == "" {
		return 0, errors.New("deck id is required")
	}
	var v int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO `+s.table+` AS t (id, slide_json, version, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (id) DO UPDATE SET slide_json = EXCLUDED.slide_json, version = t.version + 1, updated_at = now()
		RETURNING version`, id, text).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("publish %q: %w", id, err)
	}
	s.log.Info("published", slog.String("id", id), slog.Int64("version", v), slog.Int("bytes", len(text)))
	return v, nil
}

// List returns every deck, most recently updated first.
func (s *Source) List(ctx context.Context) ([]Deck, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, version, updated_at FROM `+s.table+` ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Deck
	for rows.Next() {
		var d Deck
		if err := rows.Scan(&d.ID, &d.Version, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
