/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in, anonymous usage events and crash reports.
// Nothing leaves the machine unless GSL_TELEMETRY_OPT_IN is set and an
// endpoint is configured. Events never carry document content: the session
// summary only counts store notifications by name.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"goslides/internal/events"
	applog "goslides/internal/log"
	"goslides/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvOptIn     = "GSL_TELEMETRY_OPT_IN"
	EnvEventsURL = "GSL_TELEMETRY_URL"
	EnvCrashURL  = "GSL_CRASH_UPLOAD_URL"
	EnvTimeoutMs = "GSL_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "GSL_TELEMETRY_DEBUG"
)

// Config holds runtime configuration. The zero value is disabled.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms := strings.TrimSpace(os.Getenv(EnvTimeoutMs)); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Client is an async sender with a bounded queue; it drops events when the
// queue is full or a send fails.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan map[string]any
	pending atomic.Int64 // queued or in-flight
	once    sync.Once
	closed  chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process-wide client, built from the environment on
// first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault replaces the process-wide client.
func SetDefault(c *Client) {
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan map[string]any, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events would be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a small JSON event. props must not contain document content.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	c.pending.Add(1)
	select {
	case c.q <- payload:
	default:
		c.pending.Add(-1)
	}
}

// Flush waits until queued events are sent, ctx expires or 500ms pass.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops the sender goroutine. Queued events are discarded.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.closed) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.send(item)
			c.pending.Add(-1)
		}
	}
}

func (c *Client) send(item map[string]any) {
	buf, err := json.Marshal(item)
	if err == nil {
		err = c.post(c.cfg.EventsURL, "application/json", buf)
	}
	c.debug("event", err, slog.Any("name", item["name"]))
}

// UploadCrash posts a crash report synchronously when opted in. It is called
// right before the process exits, so it does not go through the queue.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.debug("crash report", c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report))
}

func (c *Client) post(url, contentType string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return nil
}

// debug reports delivery outcomes only when GSL_TELEMETRY_DEBUG is set, so
// an unreachable collector stays silent by default.
func (c *Client) debug(what string, err error, attrs ...any) {
	if !c.cfg.DebugLogging {
		return
	}
	if err != nil {
		c.log.Debug(what+" not delivered", append(attrs, slog.Any("err", err))...)
		return
	}
	c.log.Debug(what+" delivered", attrs...)
}

// Session counts store notifications by name for one editing session.
type Session struct {
	mu     sync.Mutex
	counts map[events.Name]int
	start  time.Time
	stop   func()
}

// Track subscribes to bus and counts every event it delivers.
func Track(bus *events.Bus) *Session {
	s := &Session{counts: map[events.Name]int{}, start: time.Now()}
	s.stop = bus.SubscribeAll(events.HandlerFunc(func(e events.Event) error {
		s.mu.Lock()
		s.counts[e.Name]++
		s.mu.Unlock()
		return nil
	}))
	return s
}

// Counts returns a copy of the tallies.
func (s *Session) Counts() map[events.Name]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[events.Name]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// End unsubscribes and reports the tallies to c as a "session" event.
func (s *Session) End(c *Client) {
	s.stop()
	counts := s.Counts()
	props := map[string]any{"duration_ms": time.Since(s.start).Milliseconds()}
	for k, v := range counts {
		props[string(k)] = v
	}
	c.Event("session", props)
}
