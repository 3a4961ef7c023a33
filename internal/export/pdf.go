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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"goslides/internal/domain"
)

// PDFOptions controls the handout. Units are points.
//
// Each slide becomes one landscape page whose height follows the deck's
// aspect ratio. Element geometry (slide pixels) is scaled onto the page.
type PDFOptions struct {
	PageWidth    float64 // default 842 (A4 landscape width)
	IncludeNotes bool
	IncludeBoxes bool  // outline overlay elements
	Slides       []int // zero-based; empty means all
	GuideColor   RGB
	AccentColor  RGB // zero picks the theme accent
}

// WritePDF renders env as a multi-page PDF to w.
func WritePDF(env domain.Envelope, w io.Writer, opt PDFOptions) error {
	slides := Slides(env)
	if len(slides) == 0 {
		return errors.New("document has no slides")
	}
	settings := Settings(env)
	pageW := opt.PageWidth
	if pageW <= 0 {
		pageW = 842
	}
	cw, ch := Dimensions(settings.AspectRatio)
	pageH := pageW * ch / cw
	scale := pageW / cw
	accent := opt.AccentColor
	if accent == (RGB{}) {
		accent = ThemeAccent(settings.Theme)
	}
	guide := opt.GuideColor
	if guide == (RGB{}) {
		guide = RGB{R: 160, G: 160, B: 160}
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pageW, Ht: pageH},
		OrientationStr: "L",
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(settings.Title, true)
	if settings.CompanyName != "" {
		pdf.SetAuthor(settings.CompanyName, true)
	}
	pdf.SetCreator("goslides", false)
	pdf.SetAutoPageBreak(false, 0)

	margin := pageW * 0.05
	for _, i := range slideIndexes(len(slides), opt.Slides) {
		if i < 0 || i >= len(slides) {
			continue
		}
		s := slides[i]
		pdf.AddPageFormat("L", gofpdf.SizeType{Wd: pageW, Ht: pageH})

		// accent bar
		pdf.SetFillColor(int(accent.R), int(accent.G), int(accent.B))
		pdf.Rect(0, 0, pageW, pageH*0.02, "F")

		pdf.SetTextColor(20, 20, 20)
		pdf.SetFont("Helvetica", "B", 24)
		title := s.Title()
		if title == "" {
			title = string(s.Type)
		}
		pdf.SetXY(margin, margin)
		pdf.MultiCell(pageW-2*margin, 28, tr(title), "", "L", false)

		pdf.SetFont("Helvetica", "", 13)
		pdf.SetX(margin)
		body := strings.Join(Outline(s), "\n")
		if body != "" {
			pdf.MultiCell(pageW-2*margin, 17, tr(body), "", "L", false)
		}

		for _, el := range s.Elements {
			x, y := el.X*scale, el.Y*scale
			ew, eh := el.Width*scale, el.Height*scale
			switch el.Type {
			case domain.ElementRect:
				if c, ok := ParseHexColor(el.Fill); ok {
					pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
					pdf.Rect(x, y, ew, eh, "F")
				}
			case domain.ElementText:
				if el.Content != "" {
					sz := el.FontSize * scale
					if sz <= 0 {
						sz = 12
					}
					pdf.SetFont("Helvetica", "", sz)
					pdf.SetXY(x, y)
					pdf.MultiCell(ew, sz*1.2, tr(el.Content), "", "L", false)
				}
			}
			if opt.IncludeBoxes {
				pdf.SetDrawColor(int(guide.R), int(guide.G), int(guide.B))
				pdf.SetLineWidth(0.5)
				pdf.Rect(x, y, ew, eh, "D")
			}
		}

		if opt.IncludeNotes {
			if notes := strings.TrimSpace(s.SpeakerNotes + "\n" + s.Notes); notes != "" {
				pdf.SetFont("Helvetica", "I", 9)
				pdf.SetTextColor(90, 90, 90)
				pdf.SetXY(margin, pageH*0.78)
				pdf.MultiCell(pageW-2*margin, 11, tr("Notes: "+notes), "", "L", false)
			}
		}

		// footer
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		footer := strings.TrimSpace(strings.Join(nonEmpty(settings.CompanyName, settings.FooterText), " | "))
		if footer != "" {
			pdf.Text(margin, pageH-margin/2, tr(footer))
		}
		num := fmt.Sprintf("%d / %d", i+1, len(slides))
		pdf.Text(pageW-margin-pdf.GetStringWidth(num), pageH-margin/2, num)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WritePDFFile writes the handout to path, creating parent directories.
func WritePDFFile(env domain.Envelope, path string, opt PDFOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := WritePDF(env, f, opt); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func slideIndexes(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return specific
}

func nonEmpty(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
