/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"reflect"
)

// Payload is a JSON-shaped mapping: slide data, or a flat slide as found in an Envelope.
type Payload map[string]any

// Keys of a flat slide payload that are not part of the slide's data.
const (
	KeyType         = "type"
	KeyID           = "id"
	KeyNotes        = "notes"
	KeySpeakerNotes = "speakerNotes"
	KeyElements     = "elements"
	KeyLayout       = "layout"
)

// Clone deep-copies p.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a JSON-shaped value. Maps and slices of other
// element types are copied by reflection; scalars are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, int, int64, json.Number:
		return t
	case map[string]any:
		return map[string]any(Payload(t).Clone())
	case Payload:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []Element:
		return cloneElements(t)
	case Layout:
		return t.Clone()
	}
	return cloneReflect(reflect.ValueOf(v)).Interface()
}

func cloneReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneElem(iter.Value(), v.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneElem(v.Index(i), v.Type().Elem()))
		}
		return out
	default:
		return v
	}
}

func cloneElem(v reflect.Value, typ reflect.Type) reflect.Value {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(typ)
		}
		c := reflect.ValueOf(CloneValue(v.Interface()))
		return c.Convert(typ)
	}
	return cloneReflect(v)
}

// asMap returns v as a plain mapping when it is one.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Payload:
		return t, true
	}
	return nil, false
}

// DeepMerge returns a copy of dst with src merged in: nested mappings merge
// key by key, everything else (including lists) replaces.
func DeepMerge(dst, src Payload) Payload {
	out := dst.Clone()
	if out == nil {
		out = Payload{}
	}
	for k, sv := range src {
		if sm, ok := asMap(sv); ok {
			dm, _ := asMap(out[k])
			out[k] = map[string]any(DeepMerge(dm, sm))
			continue
		}
		out[k] = CloneValue(sv)
	}
	return out
}

// convert re-decodes a JSON-shaped value into dst.
func convert(v any, dst any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// SlideFromPayload partitions a flat slide payload into a Slide. The result
// has no ID; identifiers are assigned by the store. Elements or layout values
// that cannot be decoded are dropped.
func SlideFromPayload(p Payload) Slide {
	s := Slide{Type: DefaultSlideType, Data: Payload{}}
	for k, v := range p {
		switch k {
		case KeyID:
		case KeyType:
			if t, ok := v.(string); ok && t != "" {
				s.Type = SlideType(t)
			} else if t, ok := v.(SlideType); ok && t != "" {
				s.Type = t
			}
		case KeyNotes:
			s.Notes, _ = v.(string)
		case KeySpeakerNotes:
			s.SpeakerNotes, _ = v.(string)
		case KeyElements:
			switch t := v.(type) {
			case []Element:
				s.Elements = cloneElements(t)
			case nil:
			default:
				var els []Element
				if convert(t, &els) == nil {
					s.Elements = els
				}
			}
		case KeyLayout:
			switch t := v.(type) {
			case Layout:
				s.Layout = t.Clone()
			case nil:
			default:
				var l Layout
				if convert(t, &l) == nil {
					s.Layout = l
				}
			}
		default:
			s.Data[k] = CloneValue(v)
		}
	}
	return s
}

// Payload flattens s into its wire shape. Empty notes and elements are
// omitted; layout is included only when withLayout is set and non-empty.
func (s Slide) Payload(withLayout bool) Payload {
	out := s.Data.Clone()
	if out == nil {
		out = Payload{}
	}
	out[KeyType] = string(s.Type)
	if s.Notes != "" {
		out[KeyNotes] = s.Notes
	}
	if s.SpeakerNotes != "" {
		out[KeySpeakerNotes] = s.SpeakerNotes
	}
	if len(s.Elements) > 0 {
		out[KeyElements] = cloneElements(s.Elements)
	}
	if withLayout && len(s.Layout) > 0 {
		out[KeyLayout] = s.Layout.Clone()
	}
	return out
}

// List returns p[key] as a list when it is one. JSON-decoded lists and
// []map[string]any are both accepted; the result is a copy.
func (p Payload) List(key string) ([]any, bool) {
	switch t := p[key].(type) {
	case []any:
		return CloneValue(t).([]any), true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = map[string]any(Payload(m).Clone())
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
