/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"log/slog"

	"goslides/internal/domain"
	"goslides/internal/events"
	"goslides/internal/undo"
)

// Every mutation follows the same shape: change state under the lock,
// collect events, unlock, publish. Subscribers that mutate the store from a
// handler are queued by the bus behind the events being delivered.

func (s *Store) newSlideLocked(p domain.Payload) domain.Slide {
	sl := domain.SlideFromPayload(p)
	sl.ID = s.ids()
	return sl
}

// Load replaces the document with env. Settings are merged onto the current
// ones, title and subtitle are hoisted from legacy fields, slides get fresh
// ids, the selection returns to 0 and history restarts from this state.
func (s *Store) Load(env domain.Envelope) {
	s.mu.Lock()
	settings := s.doc.Settings
	if env.Settings != nil {
		p := *env.Settings
		if p.Theme != nil && !p.Theme.Valid() {
			s.log.WarnContext(s.ctx, "ignoring unknown theme", slog.String("theme", string(*p.Theme)))
			p.Theme = nil
		}
		settings = settings.Apply(p)
	}
	if title, subtitle := env.HoistedTitles(); title != "" || subtitle != "" {
		if title != "" {
			settings.Title = title
		}
		if subtitle != "" {
			settings.Subtitle = subtitle
		}
	}
	slides := make([]domain.Slide, 0, len(env.Slides))
	for _, p := range env.Slides {
		slides = append(slides, s.newSlideLocked(p))
	}
	if len(slides) == 0 {
		slides = append(slides, s.newSlideLocked(domain.Payload{domain.KeyType: string(domain.SlideTitle), "title": settings.Title}))
	}
	s.doc = domain.Document{Settings: settings, Slides: slides}
	s.selection = 0
	s.resetHistoryLocked()
	s.ready = true
	s.schedulePersistLocked()
	evts := []events.Event{s.loadedEvent(), s.selectedEvent(), s.historyEvent()}
	s.mu.Unlock()

	s.bus.Publish(evts...)
}

// AddSlide appends a slide built from the flat payload p. With Silent the
// slide is added without notification and without scheduling a write.
func (s *Store) AddSlide(p domain.Payload, mode domain.Mode) domain.Slide {
	s.mu.Lock()
	sl := s.newSlideLocked(p)
	s.doc.Slides = append(s.doc.Slides, sl)
	var evts []events.Event
	if mode == domain.Notify {
		c := sl.Clone()
		evts = append(evts, s.event(events.Event{Name: events.SlideAdded, Index: len(s.doc.Slides) - 1, Slide: &c}))
		evts = append(evts, s.recordLocked()...)
	}
	s.mu.Unlock()

	s.bus.Publish(evts...)
	return sl.Clone()
}

// UpdateSlide applies patch to slide i. The write is scheduled in both
// modes; Silent only suppresses the slide-updated event.
func (s *Store) UpdateSlide(i int, patch domain.SlidePatch, mode domain.Mode) {
	s.mu.Lock()
	evts := s.updateSlideLocked(i, patch, mode)
	s.mu.Unlock()
	s.bus.Publish(evts...)
}

// UpdateCurrentSlide applies patch to the selected slide.
func (s *Store) UpdateCurrentSlide(patch domain.SlidePatch, mode domain.Mode) {
	s.mu.Lock()
	evts := s.updateSlideLocked(s.selection, patch, mode)
	s.mu.Unlock()
	s.bus.Publish(evts...)
}

func (s *Store) updateSlideLocked(i int, patch domain.SlidePatch, mode domain.Mode) []events.Event {
	if !s.inRange(i) {
		return nil
	}
	s.doc.Slides[i] = s.doc.Slides[i].Apply(patch)
	var evts []events.Event
	if mode == domain.Notify {
		c := s.doc.Slides[i].Clone()
		evts = append(evts, s.event(events.Event{Name: events.SlideUpdated, Index: i, Slide: &c}))
	}
	return append(evts, s.recordLocked()...)
}

// RemoveSlide deletes slide i. The last remaining slide cannot be removed.
func (s *Store) RemoveSlide(i int) {
	s.mu.Lock()
	if !s.inRange(i) || len(s.doc.Slides) <= 1 {
		s.mu.Unlock()
		return
	}
	removed := s.doc.Slides[i]
	s.doc.Slides = append(s.doc.Slides[:i:i], s.doc.Slides[i+1:]...)
	if s.selection >= len(s.doc.Slides) {
		s.selection = len(s.doc.Slides) - 1
	}
	evts := []events.Event{
		s.event(events.Event{Name: events.SlideRemoved, Index: i, Slide: &removed}),
		s.selectedEvent(),
	}
	evts = append(evts, s.recordLocked()...)
	s.mu.Unlock()

	s.bus.Publish(evts...)
}

// DuplicateSlide inserts a deep copy of slide i right after it and returns
// the copy.
func (s *Store) DuplicateSlide(i int) (domain.Slide, bool) {
	s.mu.Lock()
	if !s.inRange(i) {
		s.mu.Unlock()
		return domain.Slide{}, false
	}
	dup := s.doc.Slides[i].Clone()
	dup.ID = s.ids()
	slides := make([]domain.Slide, 0, len(s.doc.Slides)+1)
	slides = append(slides, s.doc.Slides[:i+1]...)
	slides = append(slides, dup)
	slides = append(slides, s.doc.Slides[i+1:]...)
	s.doc.Slides = slides
	c := dup.Clone()
	evts := []events.Event{s.event(events.Event{Name: events.SlideAdded, Index: i + 1, Slide: &c})}
	evts = append(evts, s.recordLocked()...)
	s.mu.Unlock()

	s.bus.Publish(evts...)
	return dup.Clone(), true
}

// MoveSlide moves slide from to position to. The selection follows the moved
// slide, or shifts by one when the move crosses it.
func (s *Store) MoveSlide(from, to int) {
	s.mu.Lock()
	if !s.inRange(from) || !s.inRange(to) || from == to {
		s.mu.Unlock()
		return
	}
	sl := s.doc.Slides[from]
	rest := append(s.doc.Slides[:from:from], s.doc.Slides[from+1:]...)
	slides := make([]domain.Slide, 0, len(s.doc.Slides))
	slides = append(slides, rest[:to]...)
	slides = append(slides, sl)
	slides = append(slides, rest[to:]...)
	s.doc.Slides = slides

	switch cur := s.selection; {
	case cur == from:
		s.selection = to
	case from < cur && to >= cur:
		s.selection--
	case from > cur && to <= cur:
		s.selection++
	}
	evts := []events.Event{s.event(events.Event{Name: events.SlidesReordered, Index: to, From: from})}
	evts = append(evts, s.recordLocked()...)
	s.mu.Unlock()

	s.bus.Publish(evts...)
}

// Select makes slide i current. Selection changes are not undo steps.
func (s *Store) Select(i int) {
	s.mu.Lock()
	if !s.inRange(i) {
		s.mu.Unlock()
		return
	}
	s.selection = i
	e := s.selectedEvent()
	s.mu.Unlock()
	s.bus.Publish(e)
}

// Next selects the following slide, if any.
func (s *Store) Next() {
	s.mu.Lock()
	i := s.selection + 1
	s.mu.Unlock()
	s.Select(i)
}

// Prev selects the preceding slide, if any.
func (s *Store) Prev() {
	s.mu.Lock()
	i := s.selection - 1
	s.mu.Unlock()
	s.Select(i)
}

// UpdateSettings merges patch onto the settings. A theme in the patch also
// fires theme-changed; unknown themes are dropped from the patch.
func (s *Store) UpdateSettings(patch domain.SettingsPatch) {
	s.mu.Lock()
	if patch.Theme != nil && !patch.Theme.Valid() {
		s.log.WarnContext(s.ctx, "ignoring unknown theme", slog.String("theme", string(*patch.Theme)))
		patch.Theme = nil
	}
	s.doc.Settings = s.doc.Settings.Apply(patch)
	st := s.doc.Settings
	evts := []events.Event{s.event(events.Event{Name: events.SettingsUpdated, Settings: &st})}
	if patch.Theme != nil {
		evts = append(evts, s.event(events.Event{Name: events.ThemeChanged, Theme: *patch.Theme}))
	}
	evts = append(evts, s.recordLocked()...)
	s.mu.Unlock()

	s.bus.Publish(evts...)
}

// Undo steps back one snapshot. No-op at the oldest entry.
func (s *Store) Undo() { s.travel(s.hist.Undo, "undo") }

// Redo steps forward one snapshot. No-op at the newest entry.
func (s *Store) Redo() { s.travel(s.hist.Redo, "redo") }

// travel restores the snapshot returned by step. The selection active at call
// time is kept (clamped to the restored slide count) rather than the
// snapshot's own.
func (s *Store) travel(step func() (undo.Snapshot, bool), op string) {
	s.bus.Publish(s.applySnapshot(step, op)...)
}

func (s *Store) applySnapshot(step func() (undo.Snapshot, bool), op string) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := step()
	if !ok {
		return nil
	}
	s.restoring = true
	defer func() { s.restoring = false }()

	s.doc = snap.Document
	if s.selection >= len(s.doc.Slides) {
		s.selection = len(s.doc.Slides) - 1
	}
	if s.selection < 0 {
		s.selection = 0
	}
	evts := []events.Event{s.loadedEvent(), s.selectedEvent()}
	evts = append(evts, s.recordLocked()...)
	evts = append(evts, s.historyEvent())
	n, c := s.hist.Position()
	s.log.DebugContext(s.ctx, op, slog.Int("cursor", c), slog.Int("entries", n))
	return evts
}
