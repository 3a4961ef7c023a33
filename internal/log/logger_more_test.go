/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFromEnvAndGetenv(t *testing.T) {
	t.Setenv("GSL_LOG_LEVEL", "warn")
	t.Setenv("GSL_LOG_FORMAT", "json")
	t.Setenv("GSL_LOG_SOURCE", "true")
	t.Setenv("GSL_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("GSL_SOME_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"DEBUG": slog.LevelDebug, " warning ": slog.LevelWarn, "error": slog.LevelError, "loud": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleHandlerLine(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelWarn, false)
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Fatalf("error should be enabled at warn level")
	}

	h2 := h.WithAttrs([]slog.Attr{slog.String("app", "goslides"), slog.String("component", "store"), slog.String("k", "v")}).WithGroup("grp")
	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.Bool("ok", true), slog.String("title", "two words"))
	if err := h2.Handle(ctx, r); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ERR [store] boom", " k=v", "grp.n=42", "grp.pi=3.14", "grp.ok=true", `grp.title="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "app=") || strings.Contains(out, "component=") {
		t.Fatalf("static attrs should be folded away: %q", out)
	}
}

func TestConsoleHandlerInlineGroup(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newConsoleHandler(&buf, slog.LevelDebug, false))
	l.Debug("sized", slog.Group("box", slog.Int("w", 3), slog.Int("h", 4)), slog.String("empty", ""))
	out := buf.String()
	if !strings.Contains(out, "DBG sized box.w=3 box.h=4") || !strings.Contains(out, `empty=""`) {
		t.Fatalf("unexpected line: %q", out)
	}
}

func TestFanoutRespectsLevels(t *testing.T) {
	var lo, hi bytes.Buffer
	f := fanout{
		newConsoleHandler(&lo, slog.LevelDebug, false),
		newConsoleHandler(&hi, slog.LevelError, false),
	}
	slog.New(f).Info("only-low")
	if !strings.Contains(lo.String(), "only-low") {
		t.Fatalf("debug sink should receive info record")
	}
	if hi.Len() != 0 {
		t.Fatalf("error sink should not receive info record: %q", hi.String())
	}
}

func TestConsoleHandlerSource(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newConsoleHandler(&buf, slog.LevelInfo, true)).Info("where")
	if out := buf.String(); !strings.Contains(out, " src=") || !strings.Contains(out, "logger_more_test.go:") {
		t.Fatalf("source location missing: %q", out)
	}
}
