/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"goslides/internal/config"
	"goslides/internal/domain"
	"goslides/internal/export"
	"goslides/internal/layout"
	"goslides/internal/remote"
	"goslides/internal/rendertree"
	"goslides/internal/schema"
	"goslides/internal/storage"
	"goslides/internal/store"
	"goslides/internal/telemetry"
)

// Environment for the HTTP remote. When GSL_REMOTE_URL is unset, fetch and
// publish talk to PostgreSQL through the configured DSN.
const (
	envRemoteURL   = "GSL_REMOTE_URL"
	envRemoteToken = "GSL_REMOTE_TOKEN"
	envAuthSecret  = "GSL_AUTH_SECRET"
)

type cli struct {
	cfg  config.AppConfig
	live *liveDocument
	out  io.Writer
	log  *slog.Logger
}

func (c *cli) printf(format string, args ...any) { _, _ = fmt.Fprintf(c.out, format, args...) }

func (c *cli) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	c.printf("%s\n", b)
	return nil
}

// parse runs text through the normalizer. Warnings are returned with a
// usable document; hard errors are joined into the returned error.
func parse(text []byte) (domain.Envelope, []string, error) {
	res := schema.New().Parse(text)
	if !res.Success {
		return domain.Envelope{}, nil, errors.New(strings.Join(res.Errors, "; "))
	}
	return *res.Document, res.Warnings(), nil
}

func parseFile(path string) (domain.Envelope, []string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Envelope{}, nil, err
	}
	return parse(b)
}

// session is an open store with its backend and telemetry tally.
type session struct {
	st      *store.Store
	backend storage.Backend
	track   *telemetry.Session
}

func (c *cli) openStore() (*session, error) {
	dir, err := c.cfg.DataDir()
	if err != nil {
		return nil, err
	}
	backend, err := storage.OpenBackend(c.cfg.Storage.Backend, dir, c.cfg.Storage.KeepBackups)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", c.cfg.Storage.Backend, err)
	}
	st := store.New(store.Options{
		Adapter:         backend,
		Key:             c.cfg.Editor.StorageKey,
		AutosaveDelay:   c.cfg.Editor.AutosaveDelay(),
		MaxHistory:      c.cfg.Editor.MaxHistory,
		MaxHistoryBytes: c.cfg.Editor.MaxHistoryBytes,
	})
	if c.live != nil {
		c.live.set(st)
	}
	return &session{st: st, backend: backend, track: telemetry.Track(st.Bus())}, nil
}

// close persists pending edits before the backend goes away.
func (s *session) close() error {
	err := s.st.Close()
	s.track.End(telemetry.Default())
	return errors.Join(err, s.backend.Close())
}

func (c *cli) sample() error {
	return c.printJSON(schema.New().GenerateSample())
}

func (c *cli) validate(path string) int {
	env, warnings, err := parseFile(path)
	if err != nil {
		c.printf("Invalid: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		c.printf("  %s\n", w)
	}
	c.printf("OK: %d slides, %d warnings\n", len(env.Slides), len(warnings))
	return 0
}

func (c *cli) normalize(path string) error {
	env, _, err := parseFile(path)
	if err != nil {
		return err
	}
	return c.printJSON(env)
}

func (c *cli) open(path string) error {
	env, warnings, err := parseFile(path)
	if err != nil {
		return err
	}
	return c.loadInto(env, warnings, path)
}

func (c *cli) loadInto(env domain.Envelope, warnings []string, from string) (err error) {
	s, err := c.openStore()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.close()) }()
	s.st.Load(env)
	for _, w := range warnings {
		c.printf("  %s\n", w)
	}
	c.printf("Loaded %d slides from %s into %q\n", s.st.SlideCount(), from, s.st.Key())
	return nil
}

func (c *cli) info() (err error) {
	s, err := c.openStore()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.close()) }()
	if !s.st.Init() {
		c.printf("No saved deck under %q; showing a new one\n", s.st.Key())
	}
	set := s.st.Settings()
	c.printf("Title: %s\n", set.Title)
	if set.Subtitle != "" {
		c.printf("Subtitle: %s\n", set.Subtitle)
	}
	c.printf("Theme: %s  Aspect: %s\n", set.Theme, set.AspectRatio)
	for i, sl := range s.st.Slides() {
		c.printf("  %2d. [%s] %s\n", i+1, sl.Type, sl.Title())
	}
	return nil
}

func (c *cli) add(typ, title string) (err error) {
	t := domain.SlideType(strings.ToLower(strings.TrimSpace(typ)))
	if !t.Known() {
		return fmt.Errorf("unknown slide type %q", typ)
	}
	s, err := c.openStore()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.close()) }()
	s.st.Init()
	p := schema.New().DefaultPayload(t)
	p["title"] = title
	s.st.AddSlide(p, domain.Notify)
	c.printf("Added %s slide %d: %s\n", t, s.st.SlideCount(), title)
	return nil
}

func (c *cli) exportPDF(path, outPath string) error {
	env, _, err := parseFile(path)
	if err != nil {
		return err
	}
	if err := export.WritePDFFile(env, outPath, export.PDFOptions{IncludeNotes: true}); err != nil {
		return err
	}
	c.printf("Wrote %s\n", outPath)
	return nil
}

func (c *cli) thumbs(path, dir string) error {
	env, _, err := parseFile(path)
	if err != nil {
		return err
	}
	files, err := export.WriteThumbnails(env, dir, export.DefaultThumbWidth)
	if err != nil {
		return err
	}
	for _, f := range files {
		c.printf("%s\n", f)
	}
	return nil
}

// layout applies the stored overrides of one slide (1-based) to a rendered
// HTML fragment and prints the result.
func (c *cli) layout(path, slide, htmlPath string) error {
	env, _, err := parseFile(path)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(slide)
	slides := export.Slides(env)
	if err != nil || n < 1 || n > len(slides) {
		return fmt.Errorf("slide must be between 1 and %d", len(slides))
	}
	src, err := os.ReadFile(htmlPath)
	if err != nil {
		return err
	}
	tree, err := rendertree.ParseString(string(src))
	if err != nil {
		return err
	}
	applied := layout.ApplyAll(tree, slides[n-1].Layout)
	c.log.Info("layout applied", slog.Int("slide", n), slog.Int("overrides", applied))
	c.printf("%s\n", tree.String())
	return nil
}

// deckRemote is the part of the remote API fetch and publish need; both
// the HTTP client and the PostgreSQL source provide it.
type deckRemote interface {
	Fetch(ctx context.Context, id string) (string, error)
	Publish(ctx context.Context, id, text string) (int64, error)
}

func (c *cli) openRemote(ctx context.Context) (deckRemote, func(), error) {
	if url := strings.TrimSpace(os.Getenv(envRemoteURL)); url != "" {
		cl := remote.NewClient(url, os.Getenv(envRemoteToken))
		if cl.Token == "" {
			if err := cl.Authenticate(ctx, "goslides"); err != nil {
				return nil, nil, fmt.Errorf("authenticate: %w", err)
			}
		}
		return cl, func() {}, nil
	}
	if c.cfg.Remote.DSN == "" {
		return nil, nil, fmt.Errorf("no remote configured; set %s or %s", envRemoteURL, config.EnvRemoteDSN)
	}
	src, err := openSource(ctx, c.cfg.Remote)
	if err != nil {
		return nil, nil, err
	}
	return src, func() { _ = src.Close() }, nil
}

// openSource connects to the Postgres deck table and brings its schema up to
// date. On failure nothing stays open.
func openSource(ctx context.Context, rc config.RemoteConfig) (*remote.Source, error) {
	src, err := remote.Open(ctx, rc.DSN, rc.Table)
	if err != nil {
		return nil, err
	}
	if err := src.Migrate(ctx); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("migrate %s: %w", rc.Table, err)
	}
	return src, nil
}

func (c *cli) fetch(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Remote.Timeout())
	defer cancel()
	r, done, err := c.openRemote(ctx)
	if err != nil {
		return err
	}
	defer done()
	text, err := r.Fetch(ctx, id)
	if err != nil {
		return err
	}
	env, warnings, err := parse([]byte(text))
	if err != nil {
		return fmt.Errorf("deck %s: %w", id, err)
	}
	return c.loadInto(env, warnings, "remote deck "+id)
}

func (c *cli) publish(id, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, _, err := parse(b); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Remote.Timeout())
	defer cancel()
	r, done, err := c.openRemote(ctx)
	if err != nil {
		return err
	}
	defer done()
	ver, err := r.Publish(ctx, id, string(b))
	if err != nil {
		return err
	}
	c.printf("Published %s as version %d\n", id, ver)
	return nil
}

func (c *cli) serve(addr string) error {
	if c.cfg.Remote.DSN == "" {
		return fmt.Errorf("serve needs %s", config.EnvRemoteDSN)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, c.cfg.Remote.Timeout())
	src, err := openSource(openCtx, c.cfg.Remote)
	cancel()
	if err != nil {
		return err
	}
	defer src.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           remote.NewServer(src, os.Getenv(envAuthSecret)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	c.log.Info("serving decks", slog.String("addr", addr))
	c.printf("Serving on %s\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
