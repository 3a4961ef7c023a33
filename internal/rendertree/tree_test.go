/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rendertree

import (
	"strings"
	"testing"

	"goslides/internal/layout"
)

const cardsHTML = `<div class="slide"><div class="cards-container"><div class="card" style="color: red">A</div><div class="card big">B</div></div></div>`

func TestQueryAllDocumentOrder(t *testing.T) {
	tr, err := ParseString(cardsHTML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cards := tr.QueryAll(layout.Selector{Class: "card"})
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	if !tr.Matches(cards[1], layout.Selector{Tag: "div", Class: "big"}) {
		t.Fatalf("second card should carry class big")
	}
	if tr.Matches(cards[0], layout.Selector{Class: "cards-container"}) {
		t.Fatalf("class tokens must match exactly")
	}
	if got := tr.QueryAll(layout.Selector{}); len(got) != 0 {
		t.Fatalf("empty selector matched %d nodes", len(got))
	}
}

func TestSetTranslationReplacesTransform(t *testing.T) {
	tr, _ := ParseString(cardsHTML)
	card := tr.QueryAll(layout.Selector{Class: "card"})[0]
	tr.SetTranslation(card, 10, -4.5)
	tr.SetTranslation(card, 12, 0)
	if got := Style(card, "transform"); got != "translate(12px, 0px)" {
		t.Fatalf("transform = %q", got)
	}
	if got := Style(card, "color"); got != "red" {
		t.Fatalf("existing declarations lost: %q", got)
	}
}

func TestSetSizePartial(t *testing.T) {
	tr, _ := ParseString(cardsHTML)
	card := tr.QueryAll(layout.Selector{Class: "card"})[1]
	w := 240.0
	tr.SetSize(card, &w, nil)
	if Style(card, "width") != "240px" || Style(card, "height") != "" {
		t.Fatalf("unexpected style: %q", tr.String())
	}
}

func TestRenderRoundTrip(t *testing.T) {
	tr, _ := ParseString(`<table><tr class="table-row"><th>H</th></tr></table>`)
	out := tr.String()
	if !strings.Contains(out, "<th>H</th>") || !strings.HasPrefix(out, "<table>") {
		t.Fatalf("render = %q", out)
	}
}
