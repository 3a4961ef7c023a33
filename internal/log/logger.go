/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the slog logger shared by every goslides component.
//
// Console output is a compact one-line format (or JSON); an optional file sink
// always writes JSON and is rotated by lumberjack. Records logged with a
// context from ContextWithDocument carry the storage key as "doc".
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"goslides/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls Init. FromEnv fills it from GSL_LOG_LEVEL,
// GSL_LOG_FORMAT (console|json), GSL_LOG_FILE and GSL_LOG_SOURCE.
type Options struct {
	Level     string
	Format    string
	AddSource bool
	File      string
	// Writer replaces stderr for console output.
	Writer io.Writer
}

// Rotation of the file sink.
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// L returns the process logger, initialising it from the environment on first
// use.
func L() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(FromEnv())
}

// Init builds the process logger from opts, installs it as slog.Default and
// returns it.
func Init(opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource})
	} else {
		console = newConsoleHandler(out, level, opts.AddSource)
	}
	sinks := []slog.Handler{console}
	if path := strings.TrimSpace(opts.File); path != "" {
		rot := &lj.Logger{Filename: path, MaxSize: fileMaxSizeMB, MaxBackups: fileMaxBackups, MaxAge: fileMaxAgeDays, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(rot, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}))
	}

	var h slog.Handler = fanout(sinks)
	if len(sinks) == 1 {
		h = sinks[0]
	}
	l := slog.New(docHandler{h}).With(
		slog.String("app", "goslides"),
		slog.String("ver", version.Version),
		slog.Time("ts_init", time.Now()),
	)

	mu.Lock()
	logger = l
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

// FromEnv reads Options from the GSL_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("GSL_LOG_LEVEL", "info"),
		Format:    getenv("GSL_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("GSL_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("GSL_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseLevel maps debug|info|warn|warning|error to a slog level; anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithComponent returns the process logger tagged with component=name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with op.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type docKey struct{}

// ContextWithDocument tags ctx with the storage key of the document in use.
func ContextWithDocument(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, docKey{}, key)
}

// DocumentFrom returns the key stored by ContextWithDocument.
func DocumentFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(docKey{}).(string)
	return v, ok && v != ""
}

// fanout sends each record to every sink that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// docHandler adds the "doc" attribute from the record's context.
type docHandler struct{ next slog.Handler }

func (d docHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return d.next.Enabled(ctx, level)
}

func (d docHandler) Handle(ctx context.Context, r slog.Record) error {
	if key, ok := DocumentFrom(ctx); ok {
		r.AddAttrs(slog.String("doc", key))
	}
	return d.next.Handle(ctx, r)
}

func (d docHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return docHandler{d.next.WithAttrs(attrs)}
}

func (d docHandler) WithGroup(name string) slog.Handler { return docHandler{d.next.WithGroup(name)} }
