/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"goslides/internal/domain"
	"goslides/internal/events"
	"goslides/internal/undo"
)

// Task is a scheduled call that can be cancelled.
type Task interface {
	// Stop cancels the call; it reports false if the call already ran.
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) Task { return time.AfterFunc(d, f) }

// Init restores the persisted document, or starts a one-slide document when
// nothing usable is stored. It reports whether a document was restored.
func (s *Store) Init() bool {
	if env, ok := s.restore(); ok {
		s.Load(env)
		s.log.InfoContext(s.ctx, "document restored", slog.Int("slides", len(env.Slides)))
		return true
	}

	s.mu.Lock()
	s.doc = domain.Document{Settings: domain.DefaultSettings()}
	s.doc.Slides = []domain.Slide{s.newSlideLocked(domain.Payload{
		domain.KeyType: string(domain.SlideTitle),
		"title":        "Presentation Title",
		"subtitle":     "Subtitle",
		"date":         s.now().Format("2006-01-02"),
	})}
	s.selection = 0
	s.resetHistoryLocked()
	s.ready = true
	evts := []events.Event{s.historyEvent()}
	s.mu.Unlock()

	s.bus.Publish(evts...)
	return false
}

// restore reads and decodes the stored envelope. Read failures, undecodable
// text and documents without slides all count as "nothing stored".
func (s *Store) restore() (domain.Envelope, bool) {
	if s.adapter == nil {
		return domain.Envelope{}, false
	}
	text, ok, err := s.adapter.Get(s.key)
	if err != nil {
		s.log.WarnContext(s.ctx, "restore failed", slog.Any("err", err))
		return domain.Envelope{}, false
	}
	if !ok || text == "" {
		return domain.Envelope{}, false
	}
	var env domain.Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		s.log.WarnContext(s.ctx, "stored document unreadable", slog.Any("err", err))
		return domain.Envelope{}, false
	}
	if len(env.Slides) == 0 {
		return domain.Envelope{}, false
	}
	return env, true
}

func (s *Store) snapshotLocked() (undo.Snapshot, bool) {
	snap, err := undo.Capture(s.doc.Clone(), s.selection, s.now())
	if err != nil {
		s.log.ErrorContext(s.ctx, "history snapshot failed", slog.Any("err", err))
		return undo.Snapshot{}, false
	}
	return snap, true
}

func (s *Store) resetHistoryLocked() {
	if snap, ok := s.snapshotLocked(); ok {
		s.hist.Reset(snap)
	}
}

// recordLocked is the tail of every document mutation: capture an undo
// snapshot (unless restoring) and reschedule the debounced write. It returns
// the history-changed event to publish, if any.
func (s *Store) recordLocked() []events.Event {
	var out []events.Event
	if !s.restoring {
		if snap, ok := s.snapshotLocked(); ok && s.hist.Push(snap) {
			out = append(out, s.historyEvent())
		}
	}
	s.schedulePersistLocked()
	return out
}

func (s *Store) schedulePersistLocked() {
	if s.adapter == nil {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending = s.sched.AfterFunc(s.delay, func() { s.persistScheduled(gen) })
}

// persistScheduled runs on the scheduler. A callback that lost a race with a
// reschedule still writes the latest state but leaves the newer task pending.
func (s *Store) persistScheduled(gen uint64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	if gen == s.gen {
		s.pending = nil
	}
	text, err := s.encodeLocked()
	s.mu.Unlock()
	s.writeLocked(text, err)
}

func (s *Store) encodeLocked() (string, error) {
	b, err := json.Marshal(s.envelopeLocked(true))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

// writeLocked stores text. Callers hold writeMu from before encoding, so
// writes land in the order their states were taken.
func (s *Store) writeLocked(text string, encErr error) {
	if encErr != nil {
		s.log.ErrorContext(s.ctx, "autosave skipped", slog.Any("err", encErr))
		return
	}
	if err := s.adapter.Set(s.key, text); err != nil {
		s.log.WarnContext(s.ctx, "autosave failed", slog.Any("err", err))
		return
	}
	s.log.DebugContext(s.ctx, "autosaved", slog.Int("bytes", len(text)))
}

// Flush cancels a pending debounced write and persists now. It is a no-op
// when nothing is pending.
func (s *Store) Flush() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending.Stop()
	s.pending = nil
	text, err := s.encodeLocked()
	s.mu.Unlock()
	s.writeLocked(text, err)
}

// Close flushes pending writes.
func (s *Store) Close() error {
	s.Flush()
	return nil
}

// ClearStorage removes the persisted document. The in-memory document is
// untouched.
func (s *Store) ClearStorage() {
	if s.adapter == nil {
		return
	}
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.mu.Unlock()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.adapter.Remove(s.key); err != nil {
		s.log.WarnContext(s.ctx, "clear storage failed", slog.Any("err", err))
	}
}
