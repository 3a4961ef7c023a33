/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package schema

import "goslides/internal/domain"

const sampleCompany = "Example Corp."

// GenerateSample returns a small four-slide document. The only varying value
// is the date on the title slide.
func (n *Normalizer) GenerateSample() domain.Envelope {
	th := domain.DefaultTheme
	return domain.Envelope{
		Settings: &domain.SettingsPatch{
			Title:       domain.Str("Sample Presentation"),
			Theme:       &th,
			AspectRatio: domain.Str("16:9"),
			CompanyName: domain.Str(sampleCompany),
		},
		Slides: []domain.Payload{
			{
				"type":     string(domain.SlideTitle),
				"title":    "Presentation Title",
				"subtitle": sampleCompany,
				"date":     n.today(),
			},
			{
				"type":  string(domain.SlideAgenda),
				"title": "Agenda",
				"items": []any{"Introduction", "Current state", "Proposal", "Summary"},
			},
			{
				"type":   string(domain.SlideContent),
				"title":  "Key messages for today",
				"points": []any{"Key point 1", "Key point 2", "Key point 3"},
			},
			{
				"type":     string(domain.SlideClosing),
				"title":    "Thank you for your attention",
				"subtitle": sampleCompany,
			},
		},
	}
}
