/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders slide documents to handout PDFs and PNG thumbnails.
// Both renderers work from the flattened text outline of each slide rather
// than from the themed HTML, so output is deterministic and needs no browser.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"goslides/internal/domain"
)

// Slide pixel sizes per aspect ratio; element geometry is expressed in these.
const baseWidth = 960.0

// Bullet prefixes list items in outlines.
const Bullet = "• "

// Dimensions returns the slide canvas size for an aspect ratio such as
// "16:9" or "4:3". Unparseable values fall back to 16:9.
func Dimensions(aspect string) (w, h float64) {
	a, b, ok := strings.Cut(strings.TrimSpace(aspect), ":")
	if ok {
		x, err1 := strconv.ParseFloat(a, 64)
		y, err2 := strconv.ParseFloat(b, 64)
		if err1 == nil && err2 == nil && x > 0 && y > 0 {
			return baseWidth, baseWidth * y / x
		}
	}
	return baseWidth, baseWidth * 9 / 16
}

// Settings resolves the envelope's settings patch onto defaults.
func Settings(env domain.Envelope) domain.Settings {
	s := domain.DefaultSettings()
	if env.Settings != nil {
		s = s.Apply(*env.Settings)
	}
	if title, subtitle := env.HoistedTitles(); title != "" || subtitle != "" {
		if title != "" {
			s.Title = title
		}
		if subtitle != "" {
			s.Subtitle = subtitle
		}
	}
	return s
}

// Slides decodes the envelope's flat slide payloads.
func Slides(env domain.Envelope) []domain.Slide {
	out := make([]domain.Slide, 0, len(env.Slides))
	for _, p := range env.Slides {
		out = append(out, domain.SlideFromPayload(p))
	}
	return out
}

// Outline flattens a slide's data into display lines, title excluded. Keys
// are visited in sorted order; lists become bullets and objects become
// "key: values" lines.
func Outline(s domain.Slide) []string {
	keys := make([]string, 0, len(s.Data))
	for k := range s.Data {
		if k != "title" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = appendValue(out, k, s.Data[k])
	}
	return out
}

func appendValue(out []string, key string, v any) []string {
	switch t := plain(v).(type) {
	case nil:
		return out
	case []any:
		for _, it := range t {
			if line := inline(it); line != "" {
				out = append(out, Bullet+line)
			}
		}
	case map[string]any:
		if line := inline(t); line != "" {
			out = append(out, key+": "+line)
		}
	default:
		if line := inline(t); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// inline renders a scalar, or the scalar fields of an object joined by " / ".
func inline(v any) string {
	switch t := plain(v).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, it := range t {
			if s := inline(it); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := inline(t[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " / ")
	default:
		return fmt.Sprint(t)
	}
}

// plain maps the typed containers Go callers build onto their JSON shapes.
func plain(v any) any {
	switch t := v.(type) {
	case domain.Payload:
		return map[string]any(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	}
	return v
}
