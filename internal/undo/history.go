/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"goslides/internal/domain"
)

// Snapshot is one undo step: a full copy of the document and the selection at
// capture time. Blob is the canonical encoding of both and is what identity
// and size accounting use; TS is informational and never compared.
type Snapshot struct {
	Document  domain.Document
	Selection int
	Blob      []byte
	TS        time.Time
}

// Capture builds a snapshot from a document the caller no longer mutates.
func Capture(doc domain.Document, selection int, ts time.Time) (Snapshot, error) {
	blob, err := json.Marshal(struct {
		Doc       domain.Document `json:"doc"`
		Selection int             `json:"selection"`
	}{doc, selection})
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Document: doc, Selection: selection, Blob: blob, TS: ts}, nil
}

// Config controls depth and memory caps.
type Config struct {
	// MaxEntries bounds the number of snapshots; the oldest is dropped on overflow.
	MaxEntries int
	// MaxBytes is a soft cap on the summed Blob sizes; older entries are pruned
	// when exceeded, but the newest entry is always kept.
	MaxBytes int
}

// History is a linear undo history with a cursor pointing at the current state.
// It is safe for concurrent use.
type History struct {
	cfg        Config
	mu         sync.Mutex
	entries    []Snapshot
	cursor     int
	totalBytes int
}

func NewHistory(cfg Config) *History {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 50
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 32 * 1024 * 1024 // 32 MiB
	}
	return &History{cfg: cfg, cursor: -1}
}

// Push records s as the new current state. Entries after the cursor are
// discarded first. A snapshot identical to the tip is not recorded and Push
// returns false.
func (h *History) Push(s Snapshot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < len(h.entries)-1 {
		for _, e := range h.entries[h.cursor+1:] {
			h.totalBytes -= len(e.Blob)
		}
		h.entries = h.entries[:h.cursor+1]
	}
	if n := len(h.entries); n > 0 && bytes.Equal(h.entries[n-1].Blob, s.Blob) {
		return false
	}
	h.entries = append(h.entries, s)
	h.totalBytes += len(s.Blob)
	h.cursor = len(h.entries) - 1
	h.enforceCapsLocked()
	return true
}

// Reset drops every entry and seeds the history with s.
func (h *History) Reset(s Snapshot) {
	h.mu.Lock()
	h.entries = nil
	h.totalBytes = 0
	h.cursor = -1
	h.mu.Unlock()
	h.Push(s)
}

// Undo moves the cursor back and returns the snapshot it now points at.
func (h *History) Undo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor <= 0 {
		return Snapshot{}, false
	}
	h.cursor--
	return h.copyAt(h.cursor), true
}

// Redo moves the cursor forward and returns the snapshot it now points at.
func (h *History) Redo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.entries)-1 {
		return Snapshot{}, false
	}
	h.cursor++
	return h.copyAt(h.cursor), true
}

func (h *History) copyAt(i int) Snapshot {
	s := h.entries[i]
	s.Document = s.Document.Clone()
	return s
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.entries)-1
}

// Position returns the number of entries and the cursor.
func (h *History) Position() (length, cursor int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries), h.cursor
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (totalBytes int, entries int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalBytes, len(h.entries)
}

func (h *History) enforceCapsLocked() {
	drop := 0
	if over := len(h.entries) - h.cfg.MaxEntries; over > 0 {
		drop = over
	}
	bytesLeft := h.totalBytes
	for i := 0; i < drop; i++ {
		bytesLeft -= len(h.entries[i].Blob)
	}
	for drop < len(h.entries)-1 && bytesLeft > h.cfg.MaxBytes {
		bytesLeft -= len(h.entries[drop].Blob)
		drop++
	}
	if drop == 0 {
		return
	}
	h.entries = append([]Snapshot(nil), h.entries[drop:]...)
	h.totalBytes = bytesLeft
	h.cursor -= drop
	if h.cursor < 0 {
		h.cursor = 0
	}
}
