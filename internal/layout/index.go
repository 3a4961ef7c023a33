/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout addresses elements of a rendered slide by semantic keys and
// stores positional overrides against those keys.
//
// A key is the element's base type name, suffixed with "_<n>" when the slide
// renders more than one element of that type. Ordinals follow render order and
// are not stable across edits that reorder or resize the backing data.
package layout

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"goslides/internal/domain"
	applog "goslides/internal/log"
)

// Node is an opaque handle into a render tree. Implementations must use
// comparable handle values (typically pointers).
type Node any

// Tree is the render-tree contract for one slide's subtree.
type Tree interface {
	// QueryAll returns the nodes matching sel in document order.
	QueryAll(sel Selector) []Node
	Matches(n Node, sel Selector) bool
	SetTranslation(n Node, x, y float64)
	// SetSize sets the given dimensions; nil leaves a dimension as rendered.
	SetSize(n Node, w, h *float64)
}

// Reserved layout keys written by older releases; never element keys.
const (
	ReservedSavedAt      = "savedAt"
	ReservedCurrentIndex = "currentIndex"
)

// Classify returns the base type of n, or Unknown.
func Classify(t Tree, n Node) BaseType {
	for _, e := range table {
		if t.Matches(n, e.sel) {
			return e.base
		}
	}
	return Unknown
}

// ComputeKey returns the element key of n within t. ok is false when n is not
// an addressable element.
func ComputeKey(t Tree, n Node) (key string, ok bool) {
	b := Classify(t, n)
	if b == Unknown {
		return "", false
	}
	return KeyFor(b, t.QueryAll(b.Selector()), n)
}

// KeyFor builds the key of n given all nodes of base type b in the slide.
func KeyFor(b BaseType, same []Node, n Node) (string, bool) {
	if len(same) <= 1 {
		return b.String(), true
	}
	for i, s := range same {
		if s == n {
			return fmt.Sprintf("%s_%d", b, i), true
		}
	}
	return "", false
}

// ParseKey splits key into its base type and ordinal. hasOrdinal is false for
// unsuffixed keys. ok is false for unknown base types.
func ParseKey(key string) (b BaseType, ordinal int, hasOrdinal bool, ok bool) {
	name := key
	if i := strings.LastIndexByte(key, '_'); i > 0 && i < len(key)-1 {
		if n, err := strconv.Atoi(key[i+1:]); err == nil && n >= 0 && isDigits(key[i+1:]) {
			name, ordinal, hasOrdinal = key[:i], n, true
		}
	}
	b, ok = Lookup(name)
	if !ok {
		return Unknown, 0, false, false
	}
	return b, ordinal, hasOrdinal, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Resolve finds the node addressed by key. A missing node is not an error.
func Resolve(t Tree, key string) (Node, bool) {
	b, ord, _, ok := ParseKey(key)
	if !ok {
		return nil, false
	}
	nodes := t.QueryAll(b.Selector())
	if ord < 0 || ord >= len(nodes) {
		return nil, false
	}
	return nodes[ord], true
}

// skipKey reports whether key is bookkeeping rather than an element key.
func skipKey(key string) bool {
	return key == ReservedSavedAt || key == ReservedCurrentIndex || isDigits(key)
}

// ApplyAll applies every override in l to t and returns how many were
// applied. Unresolvable keys are skipped. Applying the same layout again
// produces the same geometry.
func ApplyAll(t Tree, l domain.Layout) int {
	keys := make([]string, 0, len(l))
	for k := range l {
		if !skipKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	applied := 0
	for _, k := range keys {
		o := l[k]
		n, ok := Resolve(t, k)
		if !ok {
			continue
		}
		if apply(t, n, o) {
			applied++
		}
	}
	return applied
}

func apply(t Tree, n Node, o domain.Override) bool {
	changed := false
	if o.X != nil || o.Y != nil {
		var x, y float64
		if o.X != nil {
			x = *o.X
		}
		if o.Y != nil {
			y = *o.Y
		}
		t.SetTranslation(n, x, y)
		changed = true
	}
	w, h := positive(o.Width), positive(o.Height)
	if w != nil || h != nil {
		t.SetSize(n, w, h)
		changed = true
	}
	return changed
}

func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

// Set returns a copy of l with key replaced by o.
func Set(l domain.Layout, key string, o domain.Override) domain.Layout {
	out := l.Clone()
	if out == nil {
		out = domain.Layout{}
	}
	out[key] = o.Clone()
	return out
}

// Remove returns a copy of l without key.
func Remove(l domain.Layout, key string) domain.Layout {
	out := l.Clone()
	if out == nil {
		out = domain.Layout{}
	}
	delete(out, key)
	return out
}

// SlideEditor is the part of the document store layout edits go through.
type SlideEditor interface {
	Slide(index int) (domain.Slide, bool)
	UpdateSlide(index int, patch domain.SlidePatch, mode domain.Mode)
}

// Write stores o under key on slide index through ed, so the change is
// recorded and persisted like any other edit. It reports whether the slide
// exists.
func Write(ed SlideEditor, index int, key string, o domain.Override) bool {
	s, ok := ed.Slide(index)
	if !ok {
		return false
	}
	ed.UpdateSlide(index, domain.SlidePatch{Layout: Set(s.Layout, key, o)}, domain.Silent)
	return true
}

func logger() *slog.Logger { return applog.WithComponent("layout") }
