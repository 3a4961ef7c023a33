/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package schema validates loosely structured slide documents and coerces
// them into the canonical envelope shape. Only structural problems at the top
// level are hard errors; everything else becomes a warning and is repaired.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"goslides/internal/domain"
	applog "goslides/internal/log"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// WarningPrefix marks recoverable problems in Result.Errors.
const WarningPrefix = "warning: "

// DateLayout is the format of dates filled into generated slides.
const DateLayout = "2006-01-02"

//go:embed document.schema.json
var documentSchema []byte

var compiled = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchema))
})

// Result is the outcome of Parse. On success Document is set and Errors holds
// warnings only (possibly none). On failure Document is nil.
type Result struct {
	Success  bool
	Errors   []string
	Document *domain.Envelope
}

// Warnings returns the warning entries of r.
func (r Result) Warnings() []string {
	var out []string
	for _, e := range r.Errors {
		if IsWarning(e) {
			out = append(out, e)
		}
	}
	return out
}

// IsWarning reports whether msg is a recoverable validation message.
func IsWarning(msg string) bool { return strings.HasPrefix(msg, WarningPrefix) }

// Normalizer parses and normalizes documents. The zero value is not usable;
// construct with New.
type Normalizer struct {
	now func() time.Time
	log *slog.Logger
}

// New returns a Normalizer using the wall clock for generated dates.
func New() *Normalizer {
	return &Normalizer{now: time.Now, log: applog.WithComponent("schema")}
}

// WithClock returns a copy of n that takes dates from now.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	c := *n
	c.now = now
	return &c
}

func (n *Normalizer) today() string { return n.now().Format(DateLayout) }

// Parse decodes text, validates it and returns the normalized document.
func (n *Normalizer) Parse(text []byte) Result {
	var raw any
	if err := json.Unmarshal(text, &raw); err != nil {
		return Result{Errors: []string{fmt.Sprintf("syntax error: %v", err)}}
	}
	hard, warnings := n.Validate(raw)
	if len(hard) > 0 {
		n.log.Debug("document rejected", slog.Int("errors", len(hard)))
		return Result{Errors: hard}
	}
	doc := n.Normalize(raw.(map[string]any))
	if len(warnings) > 0 {
		n.log.Info("document normalized with warnings", slog.Int("warnings", len(warnings)))
	}
	return Result{Success: true, Errors: warnings, Document: &doc}
}

// Validate checks raw, a decoded JSON value. Hard errors come from the
// embedded document schema; warnings are per-slide and per-setting findings
// that Normalize repairs.
func (n *Normalizer) Validate(raw any) (hard []string, warnings []string) {
	hard = schemaErrors(raw)
	if len(hard) > 0 {
		return hard, nil
	}
	m := raw.(map[string]any)
	if th, ok := rawSettings(m)["theme"].(string); ok && th != "" && !domain.Theme(th).Valid() {
		warnings = append(warnings, warnf("unknown theme %q, using %q", th, domain.DefaultTheme))
	}
	slides, _ := m["slides"].([]any)
	for i, s := range slides {
		warnings = append(warnings, validateSlide(s, i)...)
	}
	return nil, warnings
}

func schemaErrors(raw any) []string {
	sch, err := compiled()
	if err != nil {
		return []string{fmt.Sprintf("document schema: %v", err)}
	}
	res, err := sch.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return []string{fmt.Sprintf("validate document: %v", err)}
	}
	if res.Valid() {
		return nil
	}
	var out []string
	for _, e := range res.Errors() {
		out = append(out, describe(e))
	}
	return out
}

// describe turns a schema violation into a message an author can act on.
func describe(e gojsonschema.ResultError) string {
	field := e.Field()
	switch {
	case field == "(root)" && e.Type() == "invalid_type":
		return "document must be a JSON object"
	case e.Type() == "required" && e.Details()["property"] == "slides":
		return "a slides array is required"
	case field == "slides" && e.Type() == "invalid_type":
		return "a slides array is required"
	case field == "slides" && e.Type() == "array_min_items":
		return "at least one slide is required"
	}
	return fmt.Sprintf("%s: %s", field, e.Description())
}

func warnf(format string, args ...any) string {
	return WarningPrefix + fmt.Sprintf(format, args...)
}

func validateSlide(v any, index int) []string {
	ref := fmt.Sprintf("slide %d", index+1)
	s, ok := v.(map[string]any)
	if !ok {
		return []string{warnf("%s: not an object, replaced by an empty %s slide", ref, domain.DefaultSlideType)}
	}
	var out []string
	typ := slideType(s)
	switch raw, _ := s[domain.KeyType].(string); {
	case raw == "":
		out = append(out, warnf("%s: type missing, treated as %q", ref, domain.DefaultSlideType))
	case !domain.SlideType(raw).Known():
		out = append(out, warnf("%s: unknown type %q, treated as %q", ref, raw, domain.DefaultSlideType))
	}
	for _, field := range RequiredFields(typ) {
		if present(s, field) {
			continue
		}
		satisfied := false
		for _, alias := range aliasesFor(typ, field) {
			if present(s, alias) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			out = append(out, warnf("%s: required field %q is missing", ref, field))
		}
	}
	return out
}

func present(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// slideType returns the recognized type of a raw slide or the default type.
func slideType(s map[string]any) domain.SlideType {
	if t, ok := s[domain.KeyType].(string); ok && domain.SlideType(t).Known() {
		return domain.SlideType(t)
	}
	return domain.DefaultSlideType
}

func rawSettings(m map[string]any) map[string]any {
	s, _ := m["settings"].(map[string]any)
	return s
}

// Normalize coerces a decoded document into canonical form: settings fully
// populated, every slide typed, migrated, de-aliased and filled with its
// type's defaults. raw is not modified.
func (n *Normalizer) Normalize(raw map[string]any) domain.Envelope {
	settings := n.normalizeSettings(raw)
	out := domain.Envelope{Settings: ptr(settings.Patch())}
	slides, _ := raw["slides"].([]any)
	out.Slides = make([]domain.Payload, 0, len(slides))
	for _, s := range slides {
		m, ok := s.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		out.Slides = append(out.Slides, n.NormalizeSlide(m))
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func (n *Normalizer) normalizeSettings(raw map[string]any) domain.Settings {
	s := domain.DefaultSettings()
	rs := rawSettings(raw)
	str := func(key string) string {
		v, _ := rs[key].(string)
		return v
	}
	if v := str("title"); v != "" {
		s.Title = v
	}
	if v := str("subtitle"); v != "" {
		s.Subtitle = v
	}
	if v := domain.Theme(str("theme")); v.Valid() {
		s.Theme = v
	}
	if v := str("aspectRatio"); v != "" {
		s.AspectRatio = v
	}
	s.CompanyName = str("companyName")
	s.FooterText = str("footerText")

	env := domain.Envelope{}
	env.Title, _ = raw["title"].(string)
	env.Subtitle, _ = raw["subtitle"].(string)
	if md, ok := raw["metadata"].(map[string]any); ok {
		env.Metadata = &domain.Metadata{}
		env.Metadata.Title, _ = md["title"].(string)
		env.Metadata.Subtitle, _ = md["subtitle"].(string)
	}
	title, subtitle := env.HoistedTitles()
	if title != "" {
		s.Title = title
	}
	if subtitle != "" {
		s.Subtitle = subtitle
	}
	return s
}

// NormalizeSlide returns the canonical flat payload of one raw slide.
func (n *Normalizer) NormalizeSlide(raw map[string]any) domain.Payload {
	typ := slideType(raw)
	s := domain.Payload(raw).Clone()
	delete(s, domain.KeyType)
	if m, ok := migrations[typ]; ok {
		m(s)
	}
	for _, a := range aliases[typ] {
		if v, ok := s[a.From]; ok && !present(s, a.To) {
			s[a.To] = v
			delete(s, a.From)
			n.log.Debug("field alias resolved", slog.String("type", string(typ)), slog.String("from", a.From), slog.String("to", a.To))
		}
	}
	out := defaultPayload(typ, n.today())
	for k, v := range s {
		out[k] = v
	}
	out[domain.KeyType] = string(typ)
	return out
}

// DefaultPayload returns the default flat payload of a new slide of type t.
func (n *Normalizer) DefaultPayload(t domain.SlideType) domain.Payload {
	if !t.Known() {
		t = domain.DefaultSlideType
	}
	p := defaultPayload(t, n.today())
	p[domain.KeyType] = string(t)
	return p
}

// migrations rewrite legacy shapes before aliases are resolved.
var migrations = map[domain.SlideType]func(domain.Payload){
	domain.SlideCompare: migrateCompare,
}

// migrateCompare flattens {left:{title, items}, right:{...}} into
// leftTitle/leftItems/rightTitle/rightItems. Existing flat values win.
func migrateCompare(s domain.Payload) {
	for _, side := range []string{"left", "right"} {
		nested, ok := s[side].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := nested["title"]; ok && truthy(v) && !truthy(s[side+"Title"]) {
			s[side+"Title"] = v
		}
		if v, ok := nested["items"]; ok && truthy(v) && !truthy(s[side+"Items"]) {
			s[side+"Items"] = v
		}
		delete(s, side)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	}
	return true
}
