/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model of a slide document.
// Document is the in-memory, typed form owned by the store; Envelope is the
// JSON shape read from and written to storage and remote sources.

import (
	"encoding/json"
)

// SlideType enumerates the slide layouts the editor knows how to render.
type SlideType string

const (
	SlideTitle         SlideType = "title"
	SlideSection       SlideType = "section"
	SlideContent       SlideType = "content"
	SlideAgenda        SlideType = "agenda"
	SlideClosing       SlideType = "closing"
	SlideTable         SlideType = "table"
	SlideCompare       SlideType = "compare"
	SlideCards         SlideType = "cards"
	SlideTimeline      SlideType = "timeline"
	SlideProcess       SlideType = "process"
	SlideQuote         SlideType = "quote"
	SlideFAQ           SlideType = "faq"
	SlideProgress      SlideType = "progress"
	SlideCycle         SlideType = "cycle"
	SlideDiagram       SlideType = "diagram"
	SlideImageText     SlideType = "imageText"
	SlideMatrix        SlideType = "matrix"
	SlideKPI           SlideType = "kpi"
	SlideRoadmap       SlideType = "roadmap"
	SlideIconCards     SlideType = "icon-cards"
	SlidePhilosophy    SlideType = "philosophy"
	SlideCEOMessage    SlideType = "ceoMessage"
	SlideBusinessModel SlideType = "businessModel"
)

// DefaultSlideType is used when a payload carries no (or an unknown) type.
const DefaultSlideType = SlideContent

var slideTypes = []SlideType{
	SlideTitle, SlideSection, SlideContent, SlideAgenda, SlideClosing, SlideTable,
	SlideCompare, SlideCards, SlideTimeline, SlideProcess, SlideQuote, SlideFAQ,
	SlideProgress, SlideCycle, SlideDiagram, SlideImageText, SlideMatrix, SlideKPI,
	SlideRoadmap, SlideIconCards, SlidePhilosophy, SlideCEOMessage, SlideBusinessModel,
}

// SlideTypes returns all known slide types in declaration order.
func SlideTypes() []SlideType { return append([]SlideType(nil), slideTypes...) }

// Known reports whether t is one of the declared slide types.
func (t SlideType) Known() bool {
	for _, k := range slideTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Theme selects the visual theme of a deck.
type Theme string

const (
	ThemeStandard         Theme = "standard"
	ThemeConsulting       Theme = "consulting"
	ThemeIntegratedReport Theme = "integrated-report"
)

const DefaultTheme = ThemeStandard

// Valid reports whether th is a known theme.
func (th Theme) Valid() bool {
	switch th {
	case ThemeStandard, ThemeConsulting, ThemeIntegratedReport:
		return true
	}
	return false
}

// Settings are document-wide presentation settings. They are always fully populated.
type Settings struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Theme       Theme  `json:"theme"`
	AspectRatio string `json:"aspectRatio"`
	CompanyName string `json:"companyName"`
	FooterText  string `json:"footerText"`
}

// DefaultSettings returns the settings of a fresh document.
func DefaultSettings() Settings {
	return Settings{
		Title:       "Untitled Presentation",
		Theme:       DefaultTheme,
		AspectRatio: "16:9",
	}
}

// SettingsPatch is a partial Settings; nil fields are left untouched by Apply.
type SettingsPatch struct {
	Title       *string `json:"title,omitempty"`
	Subtitle    *string `json:"subtitle,omitempty"`
	Theme       *Theme  `json:"theme,omitempty"`
	AspectRatio *string `json:"aspectRatio,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
	FooterText  *string `json:"footerText,omitempty"`
}

// Str returns a pointer to s, for building patches.
func Str(s string) *string { return &s }

// Apply merges p onto s and returns the result.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Subtitle != nil {
		s.Subtitle = *p.Subtitle
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.AspectRatio != nil {
		s.AspectRatio = *p.AspectRatio
	}
	if p.CompanyName != nil {
		s.CompanyName = *p.CompanyName
	}
	if p.FooterText != nil {
		s.FooterText = *p.FooterText
	}
	return s
}

// Patch returns a patch that sets every field of s.
func (s Settings) Patch() SettingsPatch {
	th := s.Theme
	p := SettingsPatch{
		Title:       Str(s.Title),
		Theme:       &th,
		AspectRatio: Str(s.AspectRatio),
		CompanyName: Str(s.CompanyName),
		FooterText:  Str(s.FooterText),
	}
	if s.Subtitle != "" {
		p.Subtitle = Str(s.Subtitle)
	}
	return p
}

// Override is a translation/size delta for one addressable element of a
// rendered slide. A nil field means unspecified, which is not the same as zero.
type Override struct {
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// Num returns a pointer to v, for building overrides.
func Num(v float64) *float64 { return &v }

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a copy that shares no pointers with o.
func (o Override) Clone() Override {
	return Override{X: clonePtr(o.X), Y: clonePtr(o.Y), Width: clonePtr(o.Width), Height: clonePtr(o.Height)}
}

// IsZero reports whether no field is specified.
func (o Override) IsZero() bool {
	return o.X == nil && o.Y == nil && o.Width == nil && o.Height == nil
}

// Layout maps element keys to overrides.
type Layout map[string]Override

// Clone deep-copies l. A nil layout stays nil.
func (l Layout) Clone() Layout {
	if l == nil {
		return nil
	}
	out := make(Layout, len(l))
	for k, v := range l {
		out[k] = v.Clone()
	}
	return out
}

// UnmarshalJSON tolerates entries that are not override objects (older
// documents stored bookkeeping values such as savedAt inside layout maps);
// such entries are dropped.
func (l *Layout) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	out := make(Layout, len(raw))
	for k, v := range raw {
		var o Override
		if err := json.Unmarshal(v, &o); err != nil {
			continue
		}
		out[k] = o
	}
	*l = out
	return nil
}

// ElementType enumerates free-form overlay items.
type ElementType string

const (
	ElementText  ElementType = "text"
	ElementImage ElementType = "image"
	ElementRect  ElementType = "rect"
)

// Element is a free-form overlay item with absolute geometry in slide pixels.
type Element struct {
	ID          string      `json:"id"`
	Type        ElementType `json:"type"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	Width       float64     `json:"width"`
	Height      float64     `json:"height"`
	Rotation    float64     `json:"rotation,omitempty"`
	Opacity     *float64    `json:"opacity,omitempty"`
	Locked      bool        `json:"locked,omitempty"`
	Content     string      `json:"content,omitempty"`
	FontSize    float64     `json:"fontSize,omitempty"`
	Color       string      `json:"color,omitempty"`
	Fill        string      `json:"fill,omitempty"`
	Stroke      string      `json:"stroke,omitempty"`
	StrokeWidth float64     `json:"strokeWidth,omitempty"`
	ImageID     string      `json:"imageId,omitempty"`
	DataURL     string      `json:"dataUrl,omitempty"`
}

func cloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i, e := range in {
		e.Opacity = clonePtr(e.Opacity)
		out[i] = e
	}
	return out
}

// Slide is one page of a document.
type Slide struct {
	ID           string    `json:"id"`
	Type         SlideType `json:"type"`
	Data         Payload   `json:"data"`
	Elements     []Element `json:"elements,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	SpeakerNotes string    `json:"speakerNotes,omitempty"`
	Layout       Layout    `json:"layout,omitempty"`
}

// Clone returns a structural deep copy of s.
func (s Slide) Clone() Slide {
	s.Data = s.Data.Clone()
	s.Elements = cloneElements(s.Elements)
	s.Layout = s.Layout.Clone()
	return s
}

// Title returns data.title when it is a string.
func (s Slide) Title() string {
	t, _ := s.Data["title"].(string)
	return t
}

// SlidePatch describes an update to a slide. A nil field leaves the slide value
// untouched; a non-nil empty Elements or Layout clears it.
type SlidePatch struct {
	Type         *SlideType
	Data         Payload // deep-merged onto the existing data
	Notes        *string
	SpeakerNotes *string
	Elements     []Element // replaces wholesale
	Layout       Layout    // replaces wholesale
}

// Apply returns s with p merged in according to the per-field rules.
func (s Slide) Apply(p SlidePatch) Slide {
	out := s.Clone()
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Data != nil {
		out.Data = DeepMerge(out.Data, p.Data)
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if p.SpeakerNotes != nil {
		out.SpeakerNotes = *p.SpeakerNotes
	}
	if p.Elements != nil {
		out.Elements = cloneElements(p.Elements)
	}
	if p.Layout != nil {
		out.Layout = p.Layout.Clone()
	}
	return out
}

// Document is the typed in-memory document.
type Document struct {
	Settings Settings `json:"settings"`
	Slides   []Slide  `json:"slides"`
}

// Clone returns a structural deep copy of d.
func (d Document) Clone() Document {
	out := Document{Settings: d.Settings}
	if d.Slides != nil {
		out.Slides = make([]Slide, len(d.Slides))
		for i, s := range d.Slides {
			out.Slides[i] = s.Clone()
		}
	}
	return out
}

// Metadata carries legacy title fields found in older exports.
type Metadata struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
}

// Envelope is the JSON shape of a document on disk and on the wire.
// Slides are flat payloads: {type, ...data, notes?, speakerNotes?, elements?, layout?}.
type Envelope struct {
	Settings       *SettingsPatch `json:"settings,omitempty"`
	Title          string         `json:"title,omitempty"`
	Subtitle       string         `json:"subtitle,omitempty"`
	Metadata       *Metadata      `json:"metadata,omitempty"`
	Slides         []Payload      `json:"slides"`
	SelectionIndex *int           `json:"currentIndex,omitempty"`
	SavedAt        string         `json:"savedAt,omitempty"`
}

// HoistedTitles returns the title and subtitle carried by e, preferring
// metadata over top-level fields over nested settings. Empty strings mean
// "not provided".
func (e Envelope) HoistedTitles() (title, subtitle string) {
	pick := func(vals ...string) string {
		for _, v := range vals {
			if v != "" {
				return v
			}
		}
		return ""
	}
	var mt, ms, st, ss string
	if e.Metadata != nil {
		mt, ms = e.Metadata.Title, e.Metadata.Subtitle
	}
	if e.Settings != nil {
		if e.Settings.Title != nil {
			st = *e.Settings.Title
		}
		if e.Settings.Subtitle != nil {
			ss = *e.Settings.Subtitle
		}
	}
	return pick(mt, e.Title, st), pick(ms, e.Subtitle, ss)
}

// Mode selects whether a store mutation notifies subscribers.
type Mode int

const (
	Notify Mode = iota
	Silent
)
