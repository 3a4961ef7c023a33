/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

// BaseType is the closed set of addressable element classes of a rendered slide.
type BaseType uint8

const (
	Unknown BaseType = iota

	Table
	TableHeader
	TableRow
	ListItem
	Header
	Content
	MainTitle
	Subtitle
	Meta
	Title
	Subhead
	SectionTitle
	SectionNumber
	Points
	Compare
	Column
	Cards
	Card
	Timeline
	TimelineItem
	Agenda
	AgendaItem
	FooterCompany
	FooterPage
	Process
	Matrix
	KPI
	Roadmap
	Quote
	IconCards
	ProcessStep
	ProcessStepTitle
	ProcessStepDesc
	Quadrant
	QuadrantTitle
	KPICard
	KPIIcon
	KPIValue
	KPILabel
	RoadmapRow
	QuoteText
	IconCard
	IconCardIcon
	IconCardTitle
	IconCardDesc

	Philosophy
	PhilosophyGrid
	IRCard
	IRCardIcon
	IRCardTitle
	IRCardBody
	CEOMessage
	IRCeoLayout
	IRCeoPhoto
	IRCeoQuote
	IRCeoColumns
	IRCeoSection
	BusinessModel
	IRBmLayout
	IRBmColumn
	IRBmItem
	IRBmProcess
	IRBmProcessStep
	IRStatGrid
	IRStatCard
)

// Selector addresses nodes by element tag and/or class token. Empty fields
// match anything.
type Selector struct {
	Tag   string
	Class string
}

type entry struct {
	base BaseType
	name string
	sel  Selector
}

// table is consulted in order when classifying a node, so tag rules come
// first and containers precede their items.
var table = []entry{
	{Table, "table", Selector{Tag: "table"}},
	{TableHeader, "tableHeader", Selector{Tag: "th"}},
	{TableRow, "tableRow", Selector{Class: "table-row"}},
	{ListItem, "listItem", Selector{Class: "list-item"}},
	{Header, "header", Selector{Class: "slide-header"}},
	{Content, "content", Selector{Class: "slide-content"}},
	{MainTitle, "mainTitle", Selector{Class: "main-title"}},
	{Subtitle, "subtitle", Selector{Class: "main-subtitle"}},
	{Meta, "meta", Selector{Class: "meta-info"}},
	{Title, "title", Selector{Class: "slide-title"}},
	{Subhead, "subhead", Selector{Class: "slide-subhead"}},
	{SectionTitle, "sectionTitle", Selector{Class: "section-title"}},
	{SectionNumber, "sectionNumber", Selector{Class: "section-number"}},
	{Points, "points", Selector{Class: "points-list"}},
	{Compare, "compare", Selector{Class: "compare-container"}},
	{Column, "column", Selector{Class: "compare-column"}},
	{Cards, "cards", Selector{Class: "cards-container"}},
	{Card, "card", Selector{Class: "card"}},
	{Timeline, "timeline", Selector{Class: "timeline-container"}},
	{TimelineItem, "timelineItem", Selector{Class: "timeline-item"}},
	{Agenda, "agenda", Selector{Class: "agenda-list"}},
	{AgendaItem, "agendaItem", Selector{Class: "agenda-item"}},
	{FooterCompany, "footerCompany", Selector{Class: "slide-footer-company"}},
	{FooterPage, "footerPage", Selector{Class: "slide-footer-page"}},
	{Process, "process", Selector{Class: "process-container"}},
	{Matrix, "matrix", Selector{Class: "matrix-container"}},
	{KPI, "kpi", Selector{Class: "kpi-container"}},
	{Roadmap, "roadmap", Selector{Class: "roadmap-container"}},
	{Quote, "quote", Selector{Class: "quote-container"}},
	{IconCards, "iconCards", Selector{Class: "icon-cards-container"}},
	{ProcessStep, "processStep", Selector{Class: "process-step"}},
	{ProcessStepTitle, "processStepTitle", Selector{Class: "process-step-title"}},
	{ProcessStepDesc, "processStepDesc", Selector{Class: "process-step-desc"}},
	{Quadrant, "quadrant", Selector{Class: "matrix-quadrant"}},
	{QuadrantTitle, "quadrantTitle", Selector{Class: "quadrant-title"}},
	{KPICard, "kpiCard", Selector{Class: "kpi-card"}},
	{KPIIcon, "kpiIcon", Selector{Class: "kpi-icon"}},
	{KPIValue, "kpiValue", Selector{Class: "kpi-value"}},
	{KPILabel, "kpiLabel", Selector{Class: "kpi-label"}},
	{RoadmapRow, "roadmapRow", Selector{Class: "roadmap-row"}},
	{QuoteText, "quoteText", Selector{Class: "quote-text"}},
	{IconCard, "iconCard", Selector{Class: "icon-card"}},
	{IconCardIcon, "iconCardIcon", Selector{Class: "icon-card-icon"}},
	{IconCardTitle, "iconCardTitle", Selector{Class: "icon-card-title"}},
	{IconCardDesc, "iconCardDesc", Selector{Class: "icon-card-desc"}},

	// integrated-report templates
	{Philosophy, "philosophy", Selector{Class: "slide-philosophy"}},
	{PhilosophyGrid, "philosophyGrid", Selector{Class: "ir-philosophy-grid"}},
	{IRCard, "irCard", Selector{Class: "ir-card"}},
	{IRCardIcon, "irCardIcon", Selector{Class: "ir-card__icon"}},
	{IRCardTitle, "irCardTitle", Selector{Class: "ir-card__title"}},
	{IRCardBody, "irCardBody", Selector{Class: "ir-card__body"}},
	{CEOMessage, "ceoMessage", Selector{Class: "slide-ceo-message"}},
	{IRCeoLayout, "irCeoLayout", Selector{Class: "ir-ceo-layout"}},
	{IRCeoPhoto, "irCeoPhoto", Selector{Class: "ir-ceo-photo"}},
	{IRCeoQuote, "irCeoQuote", Selector{Class: "ir-ceo-quote"}},
	{IRCeoColumns, "irCeoColumns", Selector{Class: "ir-ceo-columns"}},
	{IRCeoSection, "irCeoSection", Selector{Class: "ir-ceo-section"}},
	{BusinessModel, "businessModel", Selector{Class: "slide-business-model"}},
	{IRBmLayout, "irBmLayout", Selector{Class: "ir-bm-layout"}},
	{IRBmColumn, "irBmColumn", Selector{Class: "ir-bm-column"}},
	{IRBmItem, "irBmItem", Selector{Class: "ir-bm-item"}},
	{IRBmProcess, "irBmProcess", Selector{Class: "ir-bm-process"}},
	{IRBmProcessStep, "irBmProcessStep", Selector{Class: "ir-bm-process-step"}},
	{IRStatGrid, "irStatGrid", Selector{Class: "ir-stat-grid"}},
	{IRStatCard, "irStatCard", Selector{Class: "ir-stat-card"}},
}

var (
	byBase = map[BaseType]entry{}
	byName = map[string]entry{}
)

func init() {
	for _, e := range table {
		byBase[e.base] = e
		byName[e.name] = e
	}
}

// String returns the key name of b, or "unknown".
func (b BaseType) String() string {
	if e, ok := byBase[b]; ok {
		return e.name
	}
	return "unknown"
}

// Selector returns the query used to find nodes of type b.
func (b BaseType) Selector() Selector { return byBase[b].sel }

// Lookup returns the BaseType named name.
func Lookup(name string) (BaseType, bool) {
	e, ok := byName[name]
	return e.base, ok
}

// BaseTypes returns every known BaseType in table order.
func BaseTypes() []BaseType {
	out := make([]BaseType, len(table))
	for i, e := range table {
		out[i] = e.base
	}
	return out
}

// Tables driving structural deletion.
var (
	// protected base types are part of the slide skeleton.
	protected = map[BaseType]bool{
		Header: true, Content: true, Title: true, MainTitle: true, Subtitle: true,
		Subhead: true, Meta: true, Points: true, Compare: true, Cards: true,
		Timeline: true, Agenda: true, Process: true, Matrix: true, KPI: true,
		Roadmap: true, Quote: true, IconCards: true, Table: true,
	}

	// arrayField maps an item type to the data list backing it.
	arrayField = map[BaseType]string{
		Card:         "items",
		TimelineItem: "milestones",
		AgendaItem:   "items",
		ListItem:     "points",
		ProcessStep:  "steps",
		KPICard:      "metrics",
		Quadrant:     "quadrants",
		RoadmapRow:   "phases",
		IconCard:     "items",
		TableRow:     "rows",
	}

	// childParent maps a leaf inside an item to the item's type.
	childParent = map[BaseType]BaseType{
		KPIValue:         KPICard,
		KPILabel:         KPICard,
		KPIIcon:          KPICard,
		ProcessStepTitle: ProcessStep,
		ProcessStepDesc:  ProcessStep,
		QuadrantTitle:    Quadrant,
		IconCardIcon:     IconCard,
		IconCardTitle:    IconCard,
		IconCardDesc:     IconCard,
	}

	// childProperty names the item property a leaf renders.
	childProperty = map[BaseType]string{
		KPIValue:         "value",
		KPILabel:         "label",
		KPIIcon:          "icon",
		ProcessStepTitle: "title",
		ProcessStepDesc:  "desc",
		QuadrantTitle:    "title",
		IconCardIcon:     "icon",
		IconCardTitle:    "title",
		IconCardDesc:     "desc",
	}
)

// Protected reports whether elements of type b can never be deleted.
func (b BaseType) Protected() bool { return protected[b] }
