/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package rendertree adapts an HTML fragment (one rendered slide) to the
// layout.Tree contract. Overrides are written into inline styles.
package rendertree

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"goslides/internal/layout"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree is a parsed slide subtree.
type Tree struct {
	root *html.Node
}

var _ layout.Tree = (*Tree)(nil)

// Parse reads an HTML fragment as it would appear inside <body>.
func Parse(r io.Reader) (*Tree, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse slide html: %w", err)
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Tree{root: root}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*Tree, error) { return Parse(strings.NewReader(s)) }

// Render writes the (possibly modified) fragment back out.
func (t *Tree) Render(w io.Writer) error {
	for c := t.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return fmt.Errorf("render slide html: %w", err)
		}
	}
	return nil
}

// String renders the tree, returning "" on error.
func (t *Tree) String() string {
	var buf bytes.Buffer
	if err := t.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// QueryAll walks the tree in document order.
func (t *Tree) QueryAll(sel layout.Selector) []layout.Node {
	var out []layout.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && matches(n, sel) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// Matches reports whether n is an element node matching sel.
func (t *Tree) Matches(n layout.Node, sel layout.Selector) bool {
	hn, ok := n.(*html.Node)
	return ok && hn.Type == html.ElementNode && matches(hn, sel)
}

func matches(n *html.Node, sel layout.Selector) bool {
	if sel.Tag == "" && sel.Class == "" {
		return false
	}
	if sel.Tag != "" && !strings.EqualFold(n.Data, sel.Tag) {
		return false
	}
	if sel.Class != "" && !hasClass(n, sel.Class) {
		return false
	}
	return true
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// SetTranslation replaces any transform with translate(x, y) in pixels.
func (t *Tree) SetTranslation(n layout.Node, x, y float64) {
	hn, ok := n.(*html.Node)
	if !ok {
		return
	}
	st := parseStyle(getAttr(hn, "style"))
	st.set("transform", fmt.Sprintf("translate(%spx, %spx)", px(x), px(y)))
	setAttr(hn, "style", st.String())
}

// SetSize sets width and/or height in pixels.
func (t *Tree) SetSize(n layout.Node, w, h *float64) {
	hn, ok := n.(*html.Node)
	if !ok || (w == nil && h == nil) {
		return
	}
	st := parseStyle(getAttr(hn, "style"))
	if w != nil {
		st.set("width", px(*w)+"px")
	}
	if h != nil {
		st.set("height", px(*h)+"px")
	}
	setAttr(hn, "style", st.String())
}

// Style returns the inline style declaration value of prop on n.
func Style(n layout.Node, prop string) string {
	hn, ok := n.(*html.Node)
	if !ok {
		return ""
	}
	return parseStyle(getAttr(hn, "style")).get(prop)
}

func px(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// style is an ordered list of inline declarations.
type style []decl

type decl struct{ prop, val string }

func parseStyle(s string) style {
	var out style
	for _, part := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		out = append(out, decl{prop, strings.TrimSpace(val)})
	}
	return out
}

func (s *style) set(prop, val string) {
	for i := range *s {
		if (*s)[i].prop == prop {
			(*s)[i].val = val
			return
		}
	}
	*s = append(*s, decl{prop, val})
}

func (s style) get(prop string) string {
	for _, d := range s {
		if d.prop == prop {
			return d.val
		}
	}
	return ""
}

func (s style) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.prop + ": " + d.val
	}
	return strings.Join(parts, "; ")
}
