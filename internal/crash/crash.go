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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"goslides/internal/domain"
	applog "goslides/internal/log"
	"goslides/internal/telemetry"
	"goslides/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

const stampLayout = "20060102-150405"

// DocumentSource yields the live document to rescue. *store.Store satisfies it.
type DocumentSource interface {
	GetFullDocument() domain.Envelope
}

// Recover captures a panic, logs it with the stack, writes crash-<stamp>.log
// and, when src is set, the live document as crash-<stamp>.json into dir
// (the temp dir when empty), then exits with code 2.
//
// Usage: defer crash.Recover(st, dir)
func Recover(src DocumentSource, dir string) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	stamp := time.Now().Format(stampLayout)
	reportPath, report, err := writeReport(dir, stamp, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if src != nil {
		if path, err := rescueDocument(src, dir, stamp); err != nil {
			l.Error("rescue document failed", slog.Any("err", err))
		} else {
			l.Info("document rescued", slog.String("path", path))
			_, _ = fmt.Fprintf(os.Stderr, "Your document was saved to: %s\n", path)
		}
	}
	telemetry.Default().UploadCrash(report)

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func crashDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

func writeReport(dir, stamp string, panicVal any, stack []byte) (string, []byte, error) {
	path := filepath.Join(crashDir(dir), fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "goslides Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := writeSync(path, buf.Bytes()); err != nil {
		return path, buf.Bytes(), err
	}
	return path, buf.Bytes(), nil
}

// rescueTimeout bounds the wait for the document; a panic raised while the
// store held its lock leaves it locked.
var rescueTimeout = 2 * time.Second

// rescueDocument reads the document on its own goroutine and in its own
// recover scope, since a store whose state caused the panic may panic again.
func rescueDocument(src DocumentSource, dir, stamp string) (string, error) {
	type result struct {
		env domain.Envelope
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("reading document panicked: %v", r)}
			}
		}()
		ch <- result{env: src.GetFullDocument()}
	}()
	var res result
	select {
	case res = <-ch:
	case <-time.After(rescueTimeout):
		return "", errors.New("timed out reading document")
	}
	if res.err != nil {
		return "", res.err
	}
	b, err := json.MarshalIndent(res.env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	path := filepath.Join(crashDir(dir), fmt.Sprintf("crash-%s.json", stamp))
	return path, writeSync(path, append(b, '\n'))
}

func writeSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
