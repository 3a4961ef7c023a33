/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"goslides/internal/config"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	t.Setenv("GSL_TELEMETRY_OPT_IN", "")
	cfg := config.Defaults()
	cfg.Storage.Dir = t.TempDir()
	cfg.Editor.AutosaveDelayMs = 10
	return cfg
}

func runCLI(t *testing.T, cfg config.AppConfig, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := run(cfg, &liveDocument{}, args, &out)
	return code, out.String()
}

func writeDeck(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "deck.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return p
}

const deckJSON = `{
  "settings": {"title": "Quarterly Review", "theme": "consulting"},
  "slides": [
    {"type": "title", "title": "Quarterly Review", "subtitle": "Q3"},
    {"type": "content", "title": "Highlights", "bullets": ["Revenue up", "Churn down"]}
  ]
}`

func TestUsageAndUnknownCommand(t *testing.T) {
	cfg := testConfig(t)
	if code, out := runCLI(t, cfg); code != 0 || !strings.Contains(out, "Usage:") {
		t.Fatalf("no args: code=%d out=%q", code, out)
	}
	if code, _ := runCLI(t, cfg, "frobnicate"); code != 2 {
		t.Fatalf("unknown command code = %d", code)
	}
	if code, out := runCLI(t, cfg, "validate"); code != 2 || !strings.Contains(out, "requires <file>") {
		t.Fatalf("missing arg: code=%d out=%q", code, out)
	}
}

func TestSampleValidates(t *testing.T) {
	cfg := testConfig(t)
	code, sample := runCLI(t, cfg, "sample")
	if code != 0 {
		t.Fatalf("sample code = %d", code)
	}
	code, out := runCLI(t, cfg, "validate", writeDeck(t, sample))
	if code != 0 || !strings.Contains(out, "OK: 4 slides") {
		t.Fatalf("validate sample: code=%d out=%q", code, out)
	}
}

func TestValidateRejectsBrokenJSON(t *testing.T) {
	cfg := testConfig(t)
	code, out := runCLI(t, cfg, "validate", writeDeck(t, `{"slides": [`))
	if code != 1 || !strings.Contains(out, "Invalid:") {
		t.Fatalf("code=%d out=%q", code, out)
	}
}

func TestNormalizeResolvesAliases(t *testing.T) {
	cfg := testConfig(t)
	code, out := runCLI(t, cfg, "normalize", writeDeck(t, deckJSON))
	if code != 0 {
		t.Fatalf("normalize code=%d out=%q", code, out)
	}
	if !strings.Contains(out, `"points"`) || strings.Contains(out, `"bullets"`) {
		t.Fatalf("bullets not mapped to points: %s", out)
	}
}

func TestOpenThenInfoAndAdd(t *testing.T) {
	cfg := testConfig(t)
	if code, out := runCLI(t, cfg, "open", writeDeck(t, deckJSON)); code != 0 || !strings.Contains(out, "Loaded 2 slides") {
		t.Fatalf("open: code=%d out=%q", code, out)
	}
	code, out := runCLI(t, cfg, "info")
	if code != 0 || !strings.Contains(out, "Title: Quarterly Review") || !strings.Contains(out, "[content] Highlights") {
		t.Fatalf("info after open: code=%d out=%q", code, out)
	}
	if code, out := runCLI(t, cfg, "add", "agenda", "Plan"); code != 0 || !strings.Contains(out, "slide 3") {
		t.Fatalf("add: code=%d out=%q", code, out)
	}
	if _, out := runCLI(t, cfg, "info"); !strings.Contains(out, "3. [agenda] Plan") {
		t.Fatalf("added slide not persisted: %q", out)
	}
	if code, _ := runCLI(t, cfg, "add", "hologram", "X"); code != 1 {
		t.Fatalf("unknown slide type should fail, got %d", code)
	}
}

func TestInfoWithoutSavedDeck(t *testing.T) {
	cfg := testConfig(t)
	code, out := runCLI(t, cfg, "info")
	if code != 0 || !strings.Contains(out, "No saved deck") || !strings.Contains(out, "1. [title]") {
		t.Fatalf("code=%d out=%q", code, out)
	}
}

func TestOpenWithSQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "sqlite"
	if code, out := runCLI(t, cfg, "open", writeDeck(t, deckJSON)); code != 0 {
		t.Fatalf("open: code=%d out=%q", code, out)
	}
	if _, out := runCLI(t, cfg, "info"); !strings.Contains(out, "Quarterly Review") {
		t.Fatalf("sqlite deck not restored: %q", out)
	}
}

func TestLayoutAppliesOverrides(t *testing.T) {
	cfg := testConfig(t)
	deck := writeDeck(t, `{"slides": [{"type": "content", "title": "Cards", "layout": {"card_1": {"x": 10, "y": 5}}}]}`)
	html := filepath.Join(t.TempDir(), "slide.html")
	src := `<div class="slide"><div class="cards-container"><div class="card">A</div><div class="card">B</div></div></div>`
	if err := os.WriteFile(html, []byte(src), 0o644); err != nil {
		t.Fatalf("write html: %v", err)
	}
	code, out := runCLI(t, cfg, "layout", deck, "1", html)
	if code != 0 || !strings.Contains(out, "translate(10px, 5px)") {
		t.Fatalf("code=%d out=%q", code, out)
	}
	if code, _ := runCLI(t, cfg, "layout", deck, "2", html); code != 1 {
		t.Fatalf("out-of-range slide should fail, got %d", code)
	}
}

func TestExportCommands(t *testing.T) {
	cfg := testConfig(t)
	deck := writeDeck(t, deckJSON)
	dir := t.TempDir()
	pdf := filepath.Join(dir, "deck.pdf")
	if code, out := runCLI(t, cfg, "export-pdf", deck, pdf); code != 0 {
		t.Fatalf("export-pdf: code=%d out=%q", code, out)
	}
	if fi, err := os.Stat(pdf); err != nil || fi.Size() == 0 {
		t.Fatalf("pdf not written: %v", err)
	}
	code, out := runCLI(t, cfg, "thumbs", deck, filepath.Join(dir, "thumbs"))
	if code != 0 || strings.Count(out, ".png") != 2 {
		t.Fatalf("thumbs: code=%d out=%q", code, out)
	}
}

func TestFetchWithoutRemote(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv(envRemoteURL, "")
	cfg.Remote.DSN = ""
	code, out := runCLI(t, cfg, "fetch", "q3")
	if code != 1 || !strings.Contains(out, "no remote configured") {
		t.Fatalf("code=%d out=%q", code, out)
	}
}

func TestOpenSourceFailureLeavesNothingOpen(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc := config.Defaults().Remote
	rc.DSN = "postgres://goslides:x@127.0.0.1:1/decks?sslmode=disable&connect_timeout=1"
	src, err := openSource(ctx, rc)
	if err == nil || src != nil {
		t.Fatalf("openSource = %v, %v; want an error and no source", src, err)
	}
}

func TestServeRequiresDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.DSN = ""
	if code, out := runCLI(t, cfg, "serve", "127.0.0.1:0"); code != 1 || !strings.Contains(out, "serve needs") {
		t.Fatalf("code=%d out=%q", code, out)
	}
}
