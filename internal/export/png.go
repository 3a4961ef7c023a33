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
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"goslides/internal/domain"
)

// DefaultThumbWidth is used when a non-positive width is requested.
const DefaultThumbWidth = 320

// RGB is an opaque colour.
type RGB struct{ R, G, B uint8 }

func (c RGB) rgba() color.RGBA { return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255} }

// ParseHexColor reads #rgb or #rrggbb.
func ParseHexColor(s string) (RGB, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

// ThemeAccent is the bar colour used for a theme.
func ThemeAccent(th domain.Theme) RGB {
	switch th {
	case domain.ThemeConsulting:
		return RGB{R: 0, G: 51, B: 102}
	case domain.ThemeIntegratedReport:
		return RGB{R: 0, G: 122, B: 94}
	default:
		return RGB{R: 37, G: 99, B: 235}
	}
}

func themeBackground(th domain.Theme) RGB {
	switch th {
	case domain.ThemeConsulting:
		return RGB{R: 246, G: 247, B: 249}
	case domain.ThemeIntegratedReport:
		return RGB{R: 250, G: 250, B: 246}
	default:
		return RGB{R: 255, G: 255, B: 255}
	}
}

// Thumbnail rasterises a slide preview width pixels wide. Text uses the
// fixed 7x13 face and is clipped to the canvas.
func Thumbnail(s domain.Slide, settings domain.Settings, width int) image.Image {
	if width <= 0 {
		width = DefaultThumbWidth
	}
	cw, ch := Dimensions(settings.AspectRatio)
	height := int(math.Round(float64(width) * ch / cw))
	scale := float64(width) / cw

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: themeBackground(settings.Theme).rgba()}, image.Point{}, draw.Src)
	bar := max(2, height/40)
	fillRect(img, 0, 0, width-1, bar-1, ThemeAccent(settings.Theme).rgba())

	for _, el := range s.Elements {
		x0 := int(math.Round(el.X * scale))
		y0 := int(math.Round(el.Y * scale))
		x1 := x0 + int(math.Round(el.Width*scale)) - 1
		y1 := y0 + int(math.Round(el.Height*scale)) - 1
		if c, ok := ParseHexColor(el.Fill); ok && el.Type == domain.ElementRect {
			fillRect(img, x0, y0, x1, y1, c.rgba())
		}
		strokeRect(img, x0, y0, x1, y1, color.RGBA{R: 180, G: 180, B: 180, A: 255})
	}

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Face: face}
	margin := max(4, width/30)
	lineH := face.Metrics().Height.Ceil() + 2
	y := bar + margin + face.Metrics().Ascent.Ceil()

	title := s.Title()
	if title == "" {
		title = string(s.Type)
	}
	d.Src = image.NewUniform(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	for _, line := range wrapText(d, title, width-2*margin) {
		d.Dot = fixed.P(margin, y)
		d.DrawString(line)
		y += lineH
	}
	y += lineH / 2
	d.Src = image.NewUniform(color.RGBA{R: 70, G: 70, B: 70, A: 255})
	for _, para := range Outline(s) {
		for _, line := range wrapText(d, para, width-2*margin) {
			if y > height-margin {
				return img
			}
			d.Dot = fixed.P(margin, y)
			d.DrawString(line)
			y += lineH
		}
	}
	return img
}

// WriteThumbnails writes slide-<n>.png (1-based) for every slide of env into
// dir and returns the paths.
func WriteThumbnails(env domain.Envelope, dir string, width int) ([]string, error) {
	slides := Slides(env)
	if len(slides) == 0 {
		return nil, errors.New("document has no slides")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	settings := Settings(env)
	paths := make([]string, 0, len(slides))
	for i, s := range slides {
		name := filepath.Join(dir, fmt.Sprintf("slide-%d.png", i+1))
		f, err := os.Create(name)
		if err != nil {
			return paths, fmt.Errorf("create png: %w", err)
		}
		if err := png.Encode(f, Thumbnail(s, settings, width)); err != nil {
			_ = f.Close()
			return paths, fmt.Errorf("encode png: %w", err)
		}
		if err := f.Close(); err != nil {
			return paths, fmt.Errorf("close png: %w", err)
		}
		paths = append(paths, name)
	}
	return paths, nil
}

// wrapText breaks s on spaces so that each line fits maxPx where possible.
// A single word wider than maxPx gets a line of its own.
func wrapText(d *font.Drawer, s string, maxPx int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		cur := ""
		for _, word := range strings.Fields(para) {
			next := word
			if cur != "" {
				next = cur + " " + word
			}
			if cur != "" && maxPx > 0 && d.MeasureString(next).Ceil() > maxPx {
				lines = append(lines, cur)
				cur = word
				continue
			}
			cur = next
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	return lines
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	draw.Draw(img, image.Rect(x0, y0, x1+1, y1+1).Intersect(img.Bounds()), &image.Uniform{C: col}, image.Point{}, draw.Src)
}
