/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package events is the notification channel between the document store and
// its consumers (renderer, page list, property panel).
//
// Delivery is synchronous and in subscription order. A handler that returns an
// error or panics is logged and skipped; the remaining handlers still run.
// Events published while a delivery is in progress (for example by a handler
// that mutates the store) are queued and delivered after the current event has
// reached every subscriber.
package events

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"goslides/internal/domain"
	applog "goslides/internal/log"
)

// Name identifies an event kind.
type Name string

const (
	DocumentLoaded  Name = "document:loaded"
	SlideAdded      Name = "slide:added"
	SlideRemoved    Name = "slide:removed"
	SlideUpdated    Name = "slide:updated"
	SlideSelected   Name = "slide:selected"
	SlidesReordered Name = "slides:reordered"
	SettingsUpdated Name = "settings:updated"
	ThemeChanged    Name = "theme:changed"
	HistoryChanged  Name = "history:changed"
)

// Names returns every event kind.
func Names() []Name {
	return []Name{DocumentLoaded, SlideAdded, SlideRemoved, SlideUpdated, SlideSelected,
		SlidesReordered, SettingsUpdated, ThemeChanged, HistoryChanged}
}

// HistoryState is the payload of HistoryChanged.
type HistoryState struct {
	CanUndo bool
	CanRedo bool
}

// Event carries a snapshot of the state relevant to its Name. Pointer fields
// are copies owned by the event; handlers may keep them.
type Event struct {
	Name Name
	// Index is the affected slide (added/removed/updated/selected) or the
	// destination of a reorder.
	Index    int
	From     int
	Slide    *domain.Slide
	Document *domain.Envelope
	Settings *domain.Settings
	Theme    domain.Theme
	History  HistoryState
	At       time.Time
}

// Handler receives events.
type Handler interface {
	Handle(e Event) error
}

// HandlerFunc allows plain functions to satisfy Handler.
type HandlerFunc func(e Event) error

// Handle dispatches to the underlying function.
func (fn HandlerFunc) Handle(e Event) error {
	if fn == nil {
		return nil
	}
	return fn(e)
}

type subscription struct {
	id   uint64
	name Name // empty matches every event
	h    Handler
}

// Bus fans events out to subscribers. The zero value is not usable; call NewBus.
type Bus struct {
	mu       sync.Mutex
	subs     []subscription
	nextID   uint64
	queue    []Event
	draining bool
	log      *slog.Logger
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{log: applog.WithComponent("events")}
}

// Subscribe registers h for events called name. The returned func removes the
// subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(name Name, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, h: h})
	return func() { b.remove(id) }
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.Subscribe("", h)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers evts in order. If a delivery is already running (on this
// or another goroutine) the events are queued behind it and Publish returns
// immediately.
func (b *Bus) Publish(evts ...Event) {
	if len(evts) == 0 {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, evts...)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.mu.Unlock()
			return
		}
		e := b.queue[0]
		b.queue = b.queue[1:]
		subs := make([]subscription, 0, len(b.subs))
		for _, s := range b.subs {
			if s.name == "" || s.name == e.Name {
				subs = append(subs, s)
			}
		}
		b.mu.Unlock()

		if err := b.deliver(e, subs); err != nil {
			b.log.Warn("event handler failed", slog.String("event", string(e.Name)), slog.Any("err", err))
		}
	}
}

func (b *Bus) deliver(e Event, subs []subscription) error {
	var errs []error
	for _, s := range subs {
		if err := safeHandle(s.h, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeHandle(h Handler, e Event) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(e)
}
