/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store owns the document being edited: settings, slides and the
// current selection. Every mutation goes through a Store method, which
// records an undo snapshot, schedules a debounced write to the persistence
// adapter and then notifies subscribers.
//
// Mutations never fail. Out-of-range indexes are ignored and storage errors
// are logged; the in-memory document stays authoritative.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"goslides/internal/domain"
	"goslides/internal/events"
	applog "goslides/internal/log"
	"goslides/internal/undo"

	"github.com/google/uuid"
)

// DefaultKey is the adapter key used when Options.Key is empty.
const DefaultKey = "goslides_document"

// DefaultAutosaveDelay is the debounce window for persistence.
const DefaultAutosaveDelay = 500 * time.Millisecond

// Adapter is opaque key/text storage. A missing key is reported as ok=false
// with a nil error.
type Adapter interface {
	Get(key string) (text string, ok bool, err error)
	Set(key, text string) error
	Remove(key string) error
}

// Options configures a Store. Zero values select defaults.
type Options struct {
	// Adapter persists the document; nil keeps it in memory only.
	Adapter   Adapter
	Scheduler Scheduler
	Bus       *events.Bus
	Logger    *slog.Logger
	Key       string

	AutosaveDelay   time.Duration
	MaxHistory      int
	MaxHistoryBytes int

	// IDs generates slide identifiers.
	IDs func() string
	Now func() time.Time
}

// NewSlideID returns "slide-" followed by a UUIDv7.
func NewSlideID() string { return "slide-" + uuid.Must(uuid.NewV7()).String() }

// Store is a single editable document. It is safe for concurrent use, but
// mutations are applied one at a time in call order.
type Store struct {
	mu sync.Mutex

	adapter Adapter
	sched   Scheduler
	bus     *events.Bus
	log     *slog.Logger
	ctx     context.Context
	key     string
	delay   time.Duration
	ids     func() string
	now     func() time.Time

	doc       domain.Document
	selection int
	hist      *undo.History
	ready     bool
	restoring bool

	pending Task
	gen     uint64
	writeMu sync.Mutex
}

// New builds a Store. Call Init or Load before editing.
func New(opts Options) *Store {
	s := &Store{
		adapter: opts.Adapter,
		sched:   opts.Scheduler,
		bus:     opts.Bus,
		log:     opts.Logger,
		key:     opts.Key,
		delay:   opts.AutosaveDelay,
		ids:     opts.IDs,
		now:     opts.Now,
		hist:    undo.NewHistory(undo.Config{MaxEntries: opts.MaxHistory, MaxBytes: opts.MaxHistoryBytes}),
		doc:     domain.Document{Settings: domain.DefaultSettings()},
	}
	if s.sched == nil {
		s.sched = timerScheduler{}
	}
	if s.bus == nil {
		s.bus = events.NewBus()
	}
	if s.log == nil {
		s.log = applog.WithComponent("store")
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.delay <= 0 {
		s.delay = DefaultAutosaveDelay
	}
	if s.ids == nil {
		s.ids = NewSlideID
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.ctx = applog.ContextWithDocument(context.Background(), s.key)
	return s
}

// Bus returns the notification bus of s.
func (s *Store) Bus() *events.Bus { return s.bus }

// Subscribe registers h for events called name.
func (s *Store) Subscribe(name events.Name, h events.Handler) (unsubscribe func()) {
	return s.bus.Subscribe(name, h)
}

// Key returns the adapter key the document is persisted under.
func (s *Store) Key() string { return s.key }

// Ready reports whether Init or Load has run.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Settings returns the current settings.
func (s *Store) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Settings
}

// Slides returns a copy of every slide.
func (s *Store) Slides() []domain.Slide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone().Slides
}

// Slide returns a copy of slide i.
func (s *Store) Slide(i int) (domain.Slide, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRange(i) {
		return domain.Slide{}, false
	}
	return s.doc.Slides[i].Clone(), true
}

// CurrentSlide returns a copy of the selected slide.
func (s *Store) CurrentSlide() (domain.Slide, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRange(s.selection) {
		return domain.Slide{}, false
	}
	return s.doc.Slides[s.selection].Clone(), true
}

func (s *Store) SlideCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Slides)
}

// Selection returns the index of the selected slide.
func (s *Store) Selection() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Document returns a structural copy of the typed document.
func (s *Store) Document() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

func (s *Store) CanUndo() bool { return s.hist.CanUndo() }
func (s *Store) CanRedo() bool { return s.hist.CanRedo() }

// HistoryLen returns the number of recorded snapshots.
func (s *Store) HistoryLen() int {
	n, _ := s.hist.Position()
	return n
}

// HistoryIndex returns the history cursor (-1 before Init or Load).
func (s *Store) HistoryIndex() int {
	_, c := s.hist.Position()
	return c
}

// GetDocument returns the distribution shape: settings and slides without
// layout overrides.
func (s *Store) GetDocument() domain.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.envelopeLocked(false)
}

// GetFullDocument returns the persisted shape: layout overrides, the
// selection and a save timestamp included.
func (s *Store) GetFullDocument() domain.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.envelopeLocked(true)
}

// JSON encodes GetDocument with indentation.
func (s *Store) JSON() ([]byte, error) {
	return json.MarshalIndent(s.GetDocument(), "", "  ")
}

func (s *Store) envelopeLocked(full bool) domain.Envelope {
	p := s.doc.Settings.Patch()
	env := domain.Envelope{Settings: &p, Slides: make([]domain.Payload, len(s.doc.Slides))}
	for i, sl := range s.doc.Slides {
		env.Slides[i] = sl.Payload(full)
	}
	if full {
		sel := s.selection
		env.SelectionIndex = &sel
		env.SavedAt = s.now().UTC().Format(time.RFC3339Nano)
	}
	return env
}

func (s *Store) inRange(i int) bool { return i >= 0 && i < len(s.doc.Slides) }

func (s *Store) currentLocked() *domain.Slide {
	if !s.inRange(s.selection) {
		return nil
	}
	c := s.doc.Slides[s.selection].Clone()
	return &c
}

// event stamps e with the current time.
func (s *Store) event(e events.Event) events.Event {
	e.At = s.now()
	return e
}

func (s *Store) selectedEvent() events.Event {
	return s.event(events.Event{Name: events.SlideSelected, Index: s.selection, Slide: s.currentLocked()})
}

func (s *Store) historyEvent() events.Event {
	return s.event(events.Event{Name: events.HistoryChanged, History: events.HistoryState{
		CanUndo: s.hist.CanUndo(),
		CanRedo: s.hist.CanRedo(),
	}})
}

func (s *Store) loadedEvent() events.Event {
	env := s.envelopeLocked(false)
	return s.event(events.Event{Name: events.DocumentLoaded, Document: &env})
}
