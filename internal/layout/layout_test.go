/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout_test

import (
	"testing"

	"goslides/internal/domain"
	"goslides/internal/layout"
	"goslides/internal/rendertree"
)

const slideHTML = `<div class="slide-content">
  <h2 class="slide-title">Offer</h2>
  <div class="cards-container">
    <div class="card">One</div>
    <div class="card">Two</div>
    <div class="card">Three</div>
  </div>
  <div class="kpi-card"><span class="kpi-value">12</span></div>
  <table><tr class="table-row"><th>A</th><th>B</th></tr></table>
</div>`

func parse(t *testing.T, s string) *rendertree.Tree {
	t.Helper()
	tr, err := rendertree.ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tr
}

func TestComputeKeyOrdinals(t *testing.T) {
	tr := parse(t, slideHTML)
	cards := tr.QueryAll(layout.Card.Selector())
	if k, _ := layout.ComputeKey(tr, cards[1]); k != "card_1" {
		t.Fatalf("second card key = %q", k)
	}
	single := parse(t, `<div class="cards-container"><div class="card">Only</div></div>`)
	only := single.QueryAll(layout.Card.Selector())[0]
	if k, _ := layout.ComputeKey(single, only); k != "card" {
		t.Fatalf("single card key = %q", k)
	}
	ths := tr.QueryAll(layout.TableHeader.Selector())
	if k, _ := layout.ComputeKey(tr, ths[0]); k != "tableHeader_0" {
		t.Fatalf("th key = %q", k)
	}
	row := tr.QueryAll(layout.TableRow.Selector())[0]
	if k, _ := layout.ComputeKey(tr, row); k != "tableRow" {
		t.Fatalf("row key = %q", k)
	}
}

func TestComputeKeyUnknownNode(t *testing.T) {
	tr := parse(t, `<div class="decoration"><span>x</span></div>`)
	n := tr.QueryAll(layout.Selector{Class: "decoration"})[0]
	if _, ok := layout.ComputeKey(tr, n); ok {
		t.Fatalf("unclassified node should have no key")
	}
}

func TestResolveInverseOfComputeKey(t *testing.T) {
	tr := parse(t, slideHTML)
	for _, b := range layout.BaseTypes() {
		for _, n := range tr.QueryAll(b.Selector()) {
			if layout.Classify(tr, n) != b {
				continue
			}
			key, ok := layout.ComputeKey(tr, n)
			if !ok {
				t.Fatalf("no key for %s", b)
			}
			got, ok := layout.Resolve(tr, key)
			if !ok || got != n {
				t.Fatalf("Resolve(%q) did not return the original node", key)
			}
		}
	}
	if _, ok := layout.Resolve(tr, "card_7"); ok {
		t.Fatalf("out of range ordinal should not resolve")
	}
	if _, ok := layout.Resolve(tr, "quadrant"); ok {
		t.Fatalf("absent type should not resolve")
	}
	if _, ok := layout.Resolve(tr, "sparkle_0"); ok {
		t.Fatalf("unknown type should not resolve")
	}
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		key    string
		base   layout.BaseType
		ord    int
		hasOrd bool
		wantOK bool
	}{
		{"card_2", layout.Card, 2, true, true},
		{"card", layout.Card, 0, false, true},
		{"irCard__icon", layout.Unknown, 0, false, false},
		{"kpiValue_0", layout.KPIValue, 0, true, true},
		{"card_-1", layout.Unknown, 0, false, false},
		{"", layout.Unknown, 0, false, false},
	}
	for _, c := range cases {
		b, ord, has, ok := layout.ParseKey(c.key)
		if b != c.base || ord != c.ord || has != c.hasOrd || ok != c.wantOK {
			t.Fatalf("ParseKey(%q) = %v %d %v %v", c.key, b, ord, has, ok)
		}
	}
}

func TestApplyAllIdempotent(t *testing.T) {
	l := domain.Layout{
		"card_1":    {X: domain.Num(10)},
		"title":     {Y: domain.Num(-5), Width: domain.Num(300)},
		"kpiCard":   {Height: domain.Num(0)},
		"savedAt":   {X: domain.Num(1)},
		"3":         {X: domain.Num(1)},
		"missing_9": {X: domain.Num(1)},
	}
	tr := parse(t, slideHTML)
	if n := layout.ApplyAll(tr, l); n != 2 {
		t.Fatalf("applied %d overrides, want 2", n)
	}
	first := tr.String()
	layout.ApplyAll(tr, l)
	if tr.String() != first {
		t.Fatalf("second application changed geometry:\n%s\n%s", first, tr.String())
	}
	card, _ := layout.Resolve(tr, "card_1")
	if got := rendertree.Style(card, "transform"); got != "translate(10px, 0px)" {
		t.Fatalf("card transform = %q", got)
	}
	title, _ := layout.Resolve(tr, "title")
	if rendertree.Style(title, "width") != "300px" || rendertree.Style(title, "height") != "" {
		t.Fatalf("title size not applied: %s", tr.String())
	}
	kpi, _ := layout.Resolve(tr, "kpiCard")
	if rendertree.Style(kpi, "height") != "" {
		t.Fatalf("zero height must be treated as unspecified")
	}
}

func TestSetAndRemoveArePure(t *testing.T) {
	orig := domain.Layout{"card_0": {X: domain.Num(1)}}
	next := layout.Set(orig, "card_1", domain.Override{Y: domain.Num(2)})
	if len(orig) != 1 || len(next) != 2 {
		t.Fatalf("Set modified its input: %v %v", orig, next)
	}
	gone := layout.Remove(next, "card_0")
	if _, ok := gone["card_0"]; ok || len(next) != 2 {
		t.Fatalf("Remove wrong: %v %v", next, gone)
	}
}

func TestBaseTypeTableClosed(t *testing.T) {
	seen := map[string]bool{}
	for _, b := range layout.BaseTypes() {
		name := b.String()
		if name == "unknown" || seen[name] {
			t.Fatalf("bad or duplicate base type name %q", name)
		}
		seen[name] = true
		if got, ok := layout.Lookup(name); !ok || got != b {
			t.Fatalf("Lookup(%q) = %v, %v", name, got, ok)
		}
	}
	if len(seen) != 64 {
		t.Fatalf("expected 64 base types, got %d", len(seen))
	}
}
