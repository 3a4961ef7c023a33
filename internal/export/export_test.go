/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"goslides/internal/domain"
)

func sampleEnvelope() domain.Envelope {
	theme := domain.ThemeConsulting
	return domain.Envelope{
		Settings: &domain.SettingsPatch{Title: domain.Str("Quarterly Review"), Theme: &theme, CompanyName: domain.Str("Example Corp.")},
		Slides: []domain.Payload{
			{"type": "title", "title": "Quarterly Review", "subtitle": "Q3 2025"},
			{"type": "content", "title": "Highlights", "points": []any{"Revenue up 12%", "Two new markets"},
				"speakerNotes": "mention the hiring freeze",
				"elements": []any{map[string]any{"id": "e1", "type": "rect", "x": 100.0, "y": 400.0, "width": 200.0, "height": 100.0, "fill": "#ff0000"}}},
			{"type": "kpi", "title": "KPIs", "metrics": []any{map[string]any{"label": "NPS", "value": 61.0}}},
		},
	}
}

func TestDimensions(t *testing.T) {
	cases := map[string][2]float64{
		"16:9":  {960, 540},
		"4:3":   {960, 720},
		"bogus": {960, 540},
		"0:1":   {960, 540},
	}
	for in, want := range cases {
		w, h := Dimensions(in)
		if w != want[0] || h != want[1] {
			t.Fatalf("Dimensions(%q) = %v x %v, want %v", in, w, h, want)
		}
	}
}

func TestOutline_FlattensPayload(t *testing.T) {
	s := domain.SlideFromPayload(sampleEnvelope().Slides[2])
	got := Outline(s)
	if len(got) != 1 || got[0] != Bullet+"NPS / 61" {
		t.Fatalf("kpi outline = %q", got)
	}
	s = domain.SlideFromPayload(domain.Payload{"type": "philosophy", "title": "x",
		"purpose": map[string]any{"title": "Purpose", "text": "Why"}, "subhead": "Sub", "flag": true})
	got = Outline(s)
	want := []string{"purpose: Why / Purpose", "Sub"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("outline = %q, want %q", got, want)
	}
}

func TestOutline_TypedContainers(t *testing.T) {
	s := domain.Slide{Type: "content", Data: domain.Payload{"points": []string{"a", "b"}}}
	if got := Outline(s); len(got) != 2 || got[1] != Bullet+"b" {
		t.Fatalf("outline = %q", got)
	}
}

func TestParseHexColor(t *testing.T) {
	if c, ok := ParseHexColor("#0af"); !ok || c != (RGB{0x00, 0xaa, 0xff}) {
		t.Fatalf("short form = %+v %v", c, ok)
	}
	if c, ok := ParseHexColor("FF8000"); !ok || c != (RGB{255, 128, 0}) {
		t.Fatalf("long form = %+v %v", c, ok)
	}
	for _, bad := range []string{"", "#12", "#zzzzzz", "red"} {
		if _, ok := ParseHexColor(bad); ok {
			t.Fatalf("ParseHexColor(%q) accepted", bad)
		}
	}
}

func TestWritePDF_ProducesDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(sampleEnvelope(), &buf, PDFOptions{IncludeNotes: true, IncludeBoxes: true}); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:8])
	}
	var one bytes.Buffer
	if err := WritePDF(sampleEnvelope(), &one, PDFOptions{Slides: []int{0}}); err != nil {
		t.Fatalf("WritePDF subset: %v", err)
	}
	if one.Len() >= buf.Len() {
		t.Fatalf("single-slide pdf (%d) not smaller than full (%d)", one.Len(), buf.Len())
	}
	if err := WritePDF(domain.Envelope{}, &buf, PDFOptions{}); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestWritePDFFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "deck.pdf")
	if err := WritePDFFile(sampleEnvelope(), out, PDFOptions{}); err != nil {
		t.Fatalf("WritePDFFile: %v", err)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		t.Fatalf("pdf not written: %v", err)
	}
}

func TestThumbnail_SizeAndPaint(t *testing.T) {
	env := sampleEnvelope()
	settings := Settings(env)
	img := Thumbnail(domain.SlideFromPayload(env.Slides[1]), settings, 320)
	b := img.Bounds()
	if b.Dx() != 320 || b.Dy() != 180 {
		t.Fatalf("thumbnail size = %v", b)
	}
	if got := color.RGBAModel.Convert(img.At(5, 1)).(color.RGBA); got != ThemeAccent(domain.ThemeConsulting).rgba() {
		t.Fatalf("accent bar pixel = %v", got)
	}
	// rect element at (100,400) slide px lands at (~33,~133) thumbnail px
	if got := color.RGBAModel.Convert(img.At(40, 150)).(color.RGBA); got != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("element fill pixel = %v", got)
	}
	if Thumbnail(domain.Slide{Type: "content"}, settings, 0).Bounds().Dx() != DefaultThumbWidth {
		t.Fatalf("default width not applied")
	}
}

func TestWriteThumbnails(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteThumbnails(sampleEnvelope(), dir, 160)
	if err != nil {
		t.Fatalf("WriteThumbnails: %v", err)
	}
	if len(paths) != 3 || filepath.Base(paths[2]) != "slide-3.png" {
		t.Fatalf("paths = %v", paths)
	}
	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil || img.Bounds().Dx() != 160 {
		t.Fatalf("decode: %v", err)
	}
}

func TestWrapText(t *testing.T) {
	d := &font.Drawer{Face: basicfont.Face7x13}
	lines := wrapText(d, "aaa bbb ccc", 7*7)
	if len(lines) != 2 || lines[0] != "aaa bbb" || lines[1] != "ccc" {
		t.Fatalf("wrap = %q", lines)
	}
	if got := wrapText(d, "supercalifragilistic", 14); len(got) != 1 {
		t.Fatalf("long word split: %q", got)
	}
}
