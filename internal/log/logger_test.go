/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// lastJSONLine returns the last non-empty line of the file decoded as JSON.
func lastJSONLine(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(b)))
	var last string
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

// TestInitAndStructuredLoggingToFile verifies that Init with a file handler writes JSON logs
// and that static and contextual attributes are present.
func TestInitAndStructuredLoggingToFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "goslides.log.json")
	Init(Options{Level: "debug", Format: "json", File: fpath, Writer: io.Discard})

	l := WithOperation(WithComponent("testcomp"), "op1")
	l.Info("hello world", slog.String("k", "v"))

	m := lastJSONLine(t, fpath)
	if m["app"] != "goslides" {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "testcomp" || m["op"] != "op1" {
		t.Fatalf("context attrs mismatch: %v / %v", m["component"], m["op"])
	}
	if m["msg"] != "hello world" || m["k"] != "v" {
		t.Fatalf("record mismatch: %v", m)
	}
}

func TestDocumentContextIsEnriched(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "doc.log.json")
	Init(Options{Level: "info", Format: "json", File: fpath, Writer: io.Discard})

	ctx := ContextWithDocument(context.Background(), "deck-1")
	WithComponent("store").InfoContext(ctx, "persisted")

	m := lastJSONLine(t, fpath)
	if m["doc"] != "deck-1" {
		t.Fatalf("expected doc attr from context, got %v", m["doc"])
	}
	if _, ok := DocumentFrom(context.Background()); ok {
		t.Fatalf("empty context must not carry a document key")
	}
}
