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
	"testing"
)

func TestCloneIsDeep(t *testing.T) {
	p := Payload{
		"title": "A",
		"items": []any{map[string]any{"title": "x"}},
		"meta":  map[string]any{"n": 1.0},
		"tags":  []string{"a", "b"},
	}
	c := p.Clone()
	c["items"].([]any)[0].(map[string]any)["title"] = "changed"
	c["meta"].(map[string]any)["n"] = 2.0
	c["tags"].([]string)[0] = "z"
	if p["items"].([]any)[0].(map[string]any)["title"] != "x" {
		t.Fatalf("nested list item shared with clone")
	}
	if p["meta"].(map[string]any)["n"] != 1.0 {
		t.Fatalf("nested map shared with clone")
	}
	if p["tags"].([]string)[0] != "a" {
		t.Fatalf("typed slice shared with clone")
	}
}

func TestDeepMergeRules(t *testing.T) {
	dst := Payload{"title": "old", "style": map[string]any{"a": 1.0, "b": 2.0}, "items": []any{"x", "y"}}
	src := Payload{"style": map[string]any{"b": 3.0}, "items": []any{"z"}, "subhead": "new"}
	got := DeepMerge(dst, src)
	want := Payload{
		"title":   "old",
		"subhead": "new",
		"style":   map[string]any{"a": 1.0, "b": 3.0},
		"items":   []any{"z"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DeepMerge = %#v, want %#v", got, want)
	}
	if dst["title"] != "old" || len(dst["items"].([]any)) != 2 {
		t.Fatalf("DeepMerge mutated dst: %#v", dst)
	}
}

func TestSlideFromPayloadPartitions(t *testing.T) {
	var p Payload
	raw := `{"id":"old","type":"cards","title":"T","items":[{"title":"a"}],"notes":"n","speakerNotes":"s",
		"elements":[{"id":"e1","type":"rect","x":1,"y":2,"width":3,"height":4}],
		"layout":{"card_0":{"x":10},"savedAt":"2024-01-01T00:00:00Z"}}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s := SlideFromPayload(p)
	if s.ID != "" || s.Type != SlideCards || s.Notes != "n" || s.SpeakerNotes != "s" {
		t.Fatalf("unexpected partition: %+v", s)
	}
	for _, k := range []string{"id", "type", "notes", "speakerNotes", "elements", "layout"} {
		if _, ok := s.Data[k]; ok {
			t.Fatalf("data still contains %q", k)
		}
	}
	if len(s.Elements) != 1 || s.Elements[0].Type != ElementRect || s.Elements[0].Height != 4 {
		t.Fatalf("elements not decoded: %+v", s.Elements)
	}
	if len(s.Layout) != 1 || s.Layout["card_0"].X == nil || *s.Layout["card_0"].X != 10 {
		t.Fatalf("layout not decoded or bookkeeping entry kept: %+v", s.Layout)
	}
}

func TestSlideFromPayloadDefaultsType(t *testing.T) {
	s := SlideFromPayload(Payload{"title": "x"})
	if s.Type != DefaultSlideType {
		t.Fatalf("type = %q, want %q", s.Type, DefaultSlideType)
	}
}

func TestSlidePayloadFlattens(t *testing.T) {
	s := Slide{
		ID:     "s1",
		Type:   SlideTitle,
		Data:   Payload{"title": "Hello"},
		Layout: Layout{"mainTitle": {Y: Num(5)}},
	}
	p := s.Payload(false)
	if p["type"] != "title" || p["title"] != "Hello" {
		t.Fatalf("flatten mismatch: %#v", p)
	}
	for _, k := range []string{"layout", "notes", "elements", "id"} {
		if _, ok := p[k]; ok {
			t.Fatalf("unexpected key %q in %#v", k, p)
		}
	}
	if _, ok := s.Payload(true)["layout"]; !ok {
		t.Fatalf("layout missing from full payload")
	}
	back := SlideFromPayload(s.Payload(true))
	back.ID = s.ID
	if !reflect.DeepEqual(back, s) {
		t.Fatalf("payload round trip mismatch:\n got %#v\nwant %#v", back, s)
	}
}

func TestSlideApplyPatch(t *testing.T) {
	s := Slide{ID: "a", Type: SlideContent, Data: Payload{"title": "t", "points": []any{"1"}}, Layout: Layout{"title": {X: Num(1)}}}
	retype := SlideCards
	got := s.Apply(SlidePatch{Type: &retype, Data: Payload{"subhead": "s"}, Notes: Str("n"), Layout: Layout{}})
	if got.Type != SlideCards || got.Data["title"] != "t" || got.Data["subhead"] != "s" || got.Notes != "n" {
		t.Fatalf("apply mismatch: %+v", got)
	}
	if got.Layout == nil || len(got.Layout) != 0 {
		t.Fatalf("empty layout must replace wholesale: %+v", got.Layout)
	}
	if len(s.Layout) != 1 || s.Data["subhead"] != nil {
		t.Fatalf("Apply mutated the receiver: %+v", s)
	}
	if same := s.Apply(SlidePatch{}); !reflect.DeepEqual(same, s) {
		t.Fatalf("empty patch changed the slide")
	}
}

func TestEnvelopeHoistedTitles(t *testing.T) {
	env := Envelope{
		Settings: &SettingsPatch{Title: Str("nested"), Subtitle: Str("nested-sub")},
		Title:    "top",
		Metadata: &Metadata{Subtitle: "meta-sub"},
	}
	title, sub := env.HoistedTitles()
	if title != "top" || sub != "meta-sub" {
		t.Fatalf("HoistedTitles = %q, %q", title, sub)
	}
	if title, _ := (Envelope{Settings: &SettingsPatch{Title: Str("nested")}}).HoistedTitles(); title != "nested" {
		t.Fatalf("nested title not used as fallback: %q", title)
	}
}

func TestSettingsApplyAndPatch(t *testing.T) {
	s := DefaultSettings()
	th := ThemeConsulting
	s = s.Apply(SettingsPatch{Theme: &th, FooterText: Str("conf")})
	if s.Theme != ThemeConsulting || s.FooterText != "conf" || s.Title != "Untitled Presentation" {
		t.Fatalf("Apply mismatch: %+v", s)
	}
	if got := DefaultSettings().Apply(s.Patch()); got != s {
		t.Fatalf("full patch did not reproduce settings: %+v vs %+v", got, s)
	}
	if !ThemeIntegratedReport.Valid() || Theme("panorama").Valid() {
		t.Fatalf("theme validity check wrong")
	}
	if !SlideType("icon-cards").Known() || SlideType("bogus").Known() {
		t.Fatalf("slide type Known check wrong")
	}
}
