/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"goslides/internal/domain"
	"goslides/internal/store"
)

// quietStderr swallows stderr for the duration of the test.
func quietStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	done := make(chan struct{})
	go func() { _, _ = io.Copy(io.Discard, r); close(done) }()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		os.Stderr = old
	})
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func findOne(t *testing.T, dir, suffix string) string {
	t.Helper()
	ents, _ := os.ReadDir(dir)
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), suffix) {
			return filepath.Join(dir, e.Name())
		}
	}
	t.Fatalf("no crash-*%s in %s", suffix, dir)
	return ""
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path, report, err := writeReport(dir, "20250501-090000", "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Base(path) != "crash-20250501-090000.log" {
		t.Fatalf("report path = %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(b) != string(report) {
		t.Fatalf("returned report differs from file")
	}
	s := string(b)
	if !strings.Contains(s, "goslides Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("report content missing: %s", s)
	}
}

func TestRecover_WritesReportAndDocument(t *testing.T) {
	quietStderr(t)
	code := stubExit(t)
	dir := t.TempDir()

	st := store.New(store.Options{AutosaveDelay: time.Hour})
	st.Init()
	st.UpdateSettings(domain.SettingsPatch{Title: domain.Str("Rescue me")})

	func() {
		defer Recover(st, dir)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	b, err := os.ReadFile(findOne(t, dir, ".log"))
	if err != nil || !strings.Contains(string(b), "Panic: boom") {
		t.Fatalf("report missing panic: %v", err)
	}
	b, err = os.ReadFile(findOne(t, dir, ".json"))
	if err != nil {
		t.Fatalf("read rescued document: %v", err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("rescued document is not JSON: %v", err)
	}
	if env.Settings == nil || env.Settings.Title == nil || *env.Settings.Title != "Rescue me" || len(env.Slides) != 1 {
		t.Fatalf("rescued document = %+v", env)
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	code := stubExit(t)
	dir := t.TempDir()
	func() {
		defer Recover(nil, dir)
	}()
	if *code != -1 {
		t.Fatalf("exit called without a panic")
	}
	if ents, _ := os.ReadDir(dir); len(ents) != 0 {
		t.Fatalf("files written without a panic")
	}
}

type lockedSource struct{ mu *sync.Mutex }

func (l lockedSource) GetFullDocument() domain.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.Envelope{}
}

type panickySource struct{}

func (panickySource) GetFullDocument() domain.Envelope { panic("again") }

func TestRescueDocument_Failures(t *testing.T) {
	old := rescueTimeout
	rescueTimeout = 50 * time.Millisecond
	defer func() { rescueTimeout = old }()

	var mu sync.Mutex
	mu.Lock()
	defer mu.Unlock()
	if _, err := rescueDocument(lockedSource{&mu}, t.TempDir(), "x"); err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}
	if _, err := rescueDocument(panickySource{}, t.TempDir(), "x"); err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected panic error, got %v", err)
	}
}
