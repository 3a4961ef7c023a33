/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"log/slog"

	"goslides/internal/domain"
)

// DeleteOutcome reports what Delete did.
type DeleteOutcome int

const (
	// NotFound: no slide, unknown key, or nothing stored for the element.
	NotFound DeleteOutcome = iota
	// Deleted: the backing data entry was removed (and its override, if any).
	Deleted
	// LayoutOnly: only the override was removed; the element has no backing list.
	LayoutOnly
	// RefusedProtected: the element belongs to the slide skeleton.
	RefusedProtected
	// RefusedLastItem: removing the entry would empty its list.
	RefusedLastItem
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case LayoutOnly:
		return "layout-only"
	case RefusedProtected:
		return "refused-protected"
	case RefusedLastItem:
		return "refused-last-item"
	default:
		return "not-found"
	}
}

// Refused reports whether the delete was declined.
func (o DeleteOutcome) Refused() bool { return o == RefusedProtected || o == RefusedLastItem }

// Delete removes the element addressed by key from slide index: its override
// and, for list-backed elements, the list entry (or the item property for a
// leaf inside an item). Both changes go through a single UpdateSlide so they
// undo together. Refusals change nothing.
func Delete(ed SlideEditor, index int, key string) DeleteOutcome {
	l := logger().With(slog.Int("slide", index), slog.String("key", key))
	b, ord, _, ok := ParseKey(key)
	if !ok {
		return NotFound
	}
	if b.Protected() {
		l.Warn("element cannot be deleted", slog.String("type", b.String()))
		return RefusedProtected
	}
	s, ok := ed.Slide(index)
	if !ok {
		return NotFound
	}

	var patch domain.SlidePatch
	if _, has := s.Layout[key]; has {
		patch.Layout = Remove(s.Layout, key)
	}

	field, list, outcome := dataDelete(s.Data, b, ord)
	switch outcome {
	case RefusedLastItem:
		l.Warn("element not deleted, list would become empty", slog.String("field", field))
		return RefusedLastItem
	case Deleted:
		patch.Data = domain.Payload{field: list}
		ed.UpdateSlide(index, patch, domain.Notify)
		l.Debug("element deleted", slog.String("field", field))
		return Deleted
	}
	if patch.Layout == nil {
		return NotFound
	}
	ed.UpdateSlide(index, patch, domain.Silent)
	return LayoutOnly
}

// dataDelete computes the replacement list for deleting element b at ord.
// The returned outcome is Deleted, RefusedLastItem or NotFound.
func dataDelete(data domain.Payload, b BaseType, ord int) (string, []any, DeleteOutcome) {
	if parent, ok := childParent[b]; ok {
		field := arrayField[parent]
		list, ok := data.List(field)
		if !ok || ord < 0 || ord >= len(list) {
			return field, nil, NotFound
		}
		item, ok := list[ord].(map[string]any)
		if !ok {
			return field, nil, NotFound
		}
		prop := childProperty[b]
		if _, has := item[prop]; !has {
			return field, nil, NotFound
		}
		delete(item, prop)
		list[ord] = item
		return field, list, Deleted
	}

	field, ok := arrayField[b]
	if !ok {
		return "", nil, NotFound
	}
	if b == ListItem {
		if _, has := data.List("points"); !has {
			if _, has := data.List("items"); has {
				field = "items"
			}
		}
	}
	list, ok := data.List(field)
	if !ok || ord < 0 || ord >= len(list) {
		return field, nil, NotFound
	}
	if len(list) == 1 {
		return field, nil, RefusedLastItem
	}
	return field, append(list[:ord], list[ord+1:]...), Deleted
}
