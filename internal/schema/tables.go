/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package schema

import "goslides/internal/domain"

// Static per-type configuration. Keep everything type-specific in these
// tables; the normalizer itself only interprets them.

// requiredFields lists the data keys each slide type should carry.
// Types not listed require only a title.
var requiredFields = map[domain.SlideType][]string{
	domain.SlideTitle:         {"title"},
	domain.SlideSection:       {"title"},
	domain.SlideContent:       {"title"},
	domain.SlideAgenda:        {"title", "items"},
	domain.SlideClosing:       {"title"},
	domain.SlideTable:         {"title", "headers", "rows"},
	domain.SlideCompare:       {"title"},
	domain.SlideCards:         {"title", "items"},
	domain.SlideTimeline:      {"title", "milestones"},
	domain.SlideProcess:       {"title", "steps"},
	domain.SlideQuote:         {"text"},
	domain.SlideFAQ:           {"title", "items"},
	domain.SlideProgress:      {"title", "items"},
	domain.SlideCycle:         {"title", "items"},
	domain.SlideDiagram:       {"title", "lanes"},
	domain.SlideImageText:     {"title", "imageUrl"},
	domain.SlideMatrix:        {"title", "quadrants"},
	domain.SlideKPI:           {"title", "metrics"},
	domain.SlideRoadmap:       {"title", "phases"},
	domain.SlideIconCards:     {"title", "items"},
	domain.SlidePhilosophy:    {"title"},
	domain.SlideCEOMessage:    {"title"},
	domain.SlideBusinessModel: {"title"},
}

var fallbackRequired = []string{"title"}

// RequiredFields returns the required data keys for t.
func RequiredFields(t domain.SlideType) []string {
	if f, ok := requiredFields[t]; ok {
		return append([]string(nil), f...)
	}
	return append([]string(nil), fallbackRequired...)
}

// Alias maps an accepted field name onto its canonical name.
type Alias struct {
	From string
	To   string
}

// aliases are applied in order; the first alias present wins and an existing
// canonical value is never overwritten.
var aliases = map[domain.SlideType][]Alias{
	domain.SlideKPI:       {{"kpis", "metrics"}, {"values", "metrics"}, {"indicators", "metrics"}},
	domain.SlideIconCards: {{"cards", "items"}, {"iconCards", "items"}},
	domain.SlideCards:     {{"cardItems", "items"}},
	domain.SlideProcess:   {{"processes", "steps"}, {"stages", "steps"}},
	domain.SlideTimeline:  {{"items", "milestones"}, {"events", "milestones"}},
	domain.SlideRoadmap:   {{"items", "phases"}, {"milestones", "phases"}},
	domain.SlideContent:   {{"bullets", "points"}, {"items", "points"}},
}

// Aliases returns the alias table of t.
func Aliases(t domain.SlideType) []Alias {
	return append([]Alias(nil), aliases[t]...)
}

// aliasesFor returns the accepted alternative names of a canonical field.
func aliasesFor(t domain.SlideType, canonical string) []string {
	var out []string
	for _, a := range aliases[t] {
		if a.To == canonical {
			out = append(out, a.From)
		}
	}
	return out
}

// defaultPayload returns the skeleton a slide of type t starts from. date is
// used by slide types that show a date.
func defaultPayload(t domain.SlideType, date string) domain.Payload {
	titled := func(extra domain.Payload) domain.Payload {
		p := domain.Payload{"title": ""}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}
	list := func() []any { return []any{} }
	switch t {
	case domain.SlideTitle:
		return titled(domain.Payload{"subtitle": "", "date": date})
	case domain.SlideSection:
		return titled(nil)
	case domain.SlideAgenda:
		return domain.Payload{"title": "Agenda", "items": list()}
	case domain.SlideClosing:
		return domain.Payload{"title": "Thank you", "subtitle": ""}
	case domain.SlideTable:
		return titled(domain.Payload{"headers": list(), "rows": list()})
	case domain.SlideCompare:
		return titled(domain.Payload{"leftTitle": "", "rightTitle": "", "leftItems": list(), "rightItems": list()})
	case domain.SlideCards, domain.SlideFAQ, domain.SlideProgress, domain.SlideCycle, domain.SlideIconCards:
		return titled(domain.Payload{"items": list()})
	case domain.SlideTimeline:
		return titled(domain.Payload{"milestones": list()})
	case domain.SlideProcess:
		return titled(domain.Payload{"steps": list()})
	case domain.SlideQuote:
		return titled(domain.Payload{"text": "", "author": ""})
	case domain.SlideDiagram:
		return titled(domain.Payload{"lanes": list()})
	case domain.SlideImageText:
		return titled(domain.Payload{"imageUrl": "", "points": list()})
	case domain.SlideMatrix:
		return titled(domain.Payload{"quadrants": list()})
	case domain.SlideKPI:
		return titled(domain.Payload{"metrics": list()})
	case domain.SlideRoadmap:
		return titled(domain.Payload{"phases": list()})
	case domain.SlidePhilosophy:
		return titled(domain.Payload{
			"subhead": "",
			"purpose": map[string]any{"title": "Purpose", "text": ""},
			"mission": map[string]any{"title": "Mission", "text": ""},
			"vision":  map[string]any{"title": "Vision", "text": ""},
			"kpis":    list(),
		})
	case domain.SlideCEOMessage:
		return titled(domain.Payload{
			"ceo":      map[string]any{"name": "", "title": "", "photo": ""},
			"quote":    "",
			"sections": list(),
			"body":     "",
		})
	case domain.SlideBusinessModel:
		return titled(domain.Payload{"subhead": "", "inputs": list(), "processes": list(), "outputs": list(), "description": ""})
	default:
		return titled(domain.Payload{"subhead": "", "points": list()})
	}
}
