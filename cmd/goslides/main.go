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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"goslides/internal/config"
	"goslides/internal/crash"
	"goslides/internal/domain"
	applog "goslides/internal/log"
	"goslides/internal/store"
	"goslides/internal/telemetry"
	"goslides/internal/version"
)

func usage(out io.Writer) {
	_, _ = fmt.Fprintln(out, "GoSlides - structured slide decks from JSON")
	_, _ = fmt.Fprintf(out, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Usage:")
	_, _ = fmt.Fprintln(out, "  goslides version|-v|--version              Show version")
	_, _ = fmt.Fprintln(out, "  goslides sample                            Print a sample document")
	_, _ = fmt.Fprintln(out, "  goslides validate <file>                   Check a document and list findings")
	_, _ = fmt.Fprintln(out, "  goslides normalize <file>                  Print the normalized document")
	_, _ = fmt.Fprintln(out, "  goslides open <file>                       Load a document into the saved deck")
	_, _ = fmt.Fprintln(out, "  goslides info                              Summarise the saved deck")
	_, _ = fmt.Fprintln(out, "  goslides add <type> <title>                Append a slide to the saved deck")
	_, _ = fmt.Fprintln(out, "  goslides export-pdf <file> <out.pdf>       Write a PDF handout")
	_, _ = fmt.Fprintln(out, "  goslides thumbs <file> <dir>               Write one PNG thumbnail per slide")
	_, _ = fmt.Fprintln(out, "  goslides layout <file> <slide> <html>      Apply stored positions to rendered HTML")
	_, _ = fmt.Fprintln(out, "  goslides fetch <id>                        Load a published deck into the saved deck")
	_, _ = fmt.Fprintln(out, "  goslides publish <id> <file>               Publish a document")
	_, _ = fmt.Fprintln(out, "  goslides serve [addr]                      Serve published decks over HTTP")
}

// liveDocument hands the store to crash recovery once one is open.
type liveDocument struct {
	mu sync.Mutex
	st *store.Store
}

func (d *liveDocument) set(st *store.Store) {
	d.mu.Lock()
	d.st = st
	d.mu.Unlock()
}

func (d *liveDocument) GetFullDocument() domain.Envelope {
	d.mu.Lock()
	st := d.st
	d.mu.Unlock()
	if st == nil {
		return domain.Envelope{}
	}
	return st.GetFullDocument()
}

func main() {
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded; using defaults", slog.Any("err", cfgErr))
	}

	crashDir := ""
	if dir, err := cfg.DataDir(); err == nil {
		crashDir = filepath.Join(dir, "crash")
	}
	live := &liveDocument{}
	defer crash.Recover(live, crashDir)

	l.Debug("start", slog.Int("args", len(os.Args)))
	code := run(cfg, live, os.Args[1:], os.Stdout)

	tc := telemetry.Default()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	tc.Flush(ctx)
	cancel()
	tc.Close()

	if code != 0 {
		os.Exit(code)
	}
}

// run executes one command and returns the process exit code: 0 on success,
// 1 when the command failed and 2 on a usage error.
func run(cfg config.AppConfig, live *liveDocument, args []string, out io.Writer) int {
	if len(args) == 0 {
		usage(out)
		return 0
	}
	c := &cli{cfg: cfg, live: live, out: out, log: applog.WithComponent("cli")}
	cmd, rest := args[0], args[1:]
	need := func(n int, what string) bool {
		if len(rest) < n {
			_, _ = fmt.Fprintf(out, "%s requires %s\n", cmd, what)
			usage(out)
			return false
		}
		return true
	}

	var err error
	switch cmd {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(out, "GoSlides")
		_, _ = fmt.Fprintln(out, version.String())
		return 0
	case "help", "--help", "-h":
		usage(out)
		return 0
	case "sample":
		err = c.sample()
	case "validate":
		if !need(1, "<file>") {
			return 2
		}
		return c.validate(rest[0])
	case "normalize":
		if !need(1, "<file>") {
			return 2
		}
		err = c.normalize(rest[0])
	case "open":
		if !need(1, "<file>") {
			return 2
		}
		err = c.open(rest[0])
	case "info":
		err = c.info()
	case "add":
		if !need(2, "<type> and <title>") {
			return 2
		}
		err = c.add(rest[0], rest[1])
	case "export-pdf":
		if !need(2, "<file> and <out.pdf>") {
			return 2
		}
		err = c.exportPDF(rest[0], rest[1])
	case "thumbs":
		if !need(2, "<file> and <dir>") {
			return 2
		}
		err = c.thumbs(rest[0], rest[1])
	case "layout":
		if !need(3, "<file>, <slide> and <html>") {
			return 2
		}
		err = c.layout(rest[0], rest[1], rest[2])
	case "fetch":
		if !need(1, "<id>") {
			return 2
		}
		err = c.fetch(rest[0])
	case "publish":
		if !need(2, "<id> and <file>") {
			return 2
		}
		err = c.publish(rest[0], rest[1])
	case "serve":
		addr := ":8080"
		if len(rest) > 0 {
			addr = rest[0]
		}
		err = c.serve(addr)
	default:
		_, _ = fmt.Fprintf(out, "unknown command %q\n", cmd)
		usage(out)
		return 2
	}
	if err != nil {
		c.log.Error("command failed", slog.String("cmd", cmd), slog.Any("err", err))
		_, _ = fmt.Fprintln(out, "Error:", err)
		return 1
	}
	return 0
}
