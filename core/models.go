// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strconv"
)

// EmbeddingDim is the fixed width of ComputedData embeddings.
const EmbeddingDim = 768

// Kind names a page schema version. It doubles as the variant tag in the
// JSON wire form.
type Kind string

const (
	// KindSummer2025 is the current schema, keyed by project URL.
	KindSummer2025 Kind = "Summer2025"
	// KindJourney2025 is the legacy schema, keyed by numeric id.
	KindJourney2025 Kind = "Journey2025"
)

// UniqueKey identifies a page store-wide.
type UniqueKey string

// Page is a scraped project page. The set of implementations is closed:
// only the variants declared in this package satisfy it, and new schema
// versions are added as new variants.
type Page interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Key returns the natural unique key of the page.
	Key() UniqueKey
	// Preview returns the compact display projection of the page.
	Preview() Preview

	sealed()
}

// Preview is the compact projection of a page shown in result lists.
type Preview struct {
	Img         string `json:"img"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Props       string `json:"props"`
}

// SearchResult is one ranked hit. ID is the record's position in the store.
type SearchResult struct {
	ID    int     `json:"id"`
	Rank  float32 `json:"rank"`
	Event string  `json:"event"`
	Page  Preview `json:"page"`
}

// ComputedData is auxiliary data attached to a page after ingestion by an
// external analysis process.
type ComputedData struct {
	Embedding     []float32 `json:"embedding"`
	AIDescription float32   `json:"ai_description"`
	AICode        float32   `json:"ai_code"`
}

// Clone returns a deep copy of c. A nil receiver returns nil.
func (c *ComputedData) Clone() *ComputedData {
	if c == nil {
		return nil
	}
	out := *c
	out.Embedding = append([]float32(nil), c.Embedding...)
	return &out
}

// Summer2025Page is a project page from the Summer of Making 2025 event.
type Summer2025Page struct {
	URL         string   `json:"url"`
	MainImage   string   `json:"main_image"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Followers   uint16   `json:"followers"`
	Time        uint32   `json:"time"` // seconds of logged work
	Readme      *string  `json:"readme"`
	Repo        *string  `json:"repo"`
	Demo        *string  `json:"demo"`
	Updates     []Update `json:"updates"`
}

// Update is a single devlog entry on a Summer2025Page.
type Update struct {
	Time    uint32  `json:"time"`
	Message string  `json:"message"`
	Image   *string `json:"image"`
}

var _ Page = (*Summer2025Page)(nil)

func (p *Summer2025Page) Kind() Kind { return KindSummer2025 }

func (p *Summer2025Page) Key() UniqueKey { return UniqueKey(p.URL) }

func (p *Summer2025Page) Preview() Preview {
	return Preview{
		Img:         p.MainImage,
		Name:        p.Name,
		Description: p.Description,
		Props:       fmt.Sprintf("updates: %d", len(p.Updates)),
	}
}

func (p *Summer2025Page) sealed() {}

// Journey2025Page is a project page from the Journey 2025 event. It predates
// text ranking.
type Journey2025Page struct {
	ID          uint32          `json:"id"`
	MainImage   string          `json:"main_image"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Author      string          `json:"author"`
	Followers   uint16          `json:"followers"`
	Stonks      uint16          `json:"stonks"`
	Time        string          `json:"time"`
	Readme      *string         `json:"readme"`
	Repo        *string         `json:"repo"`
	Demo        *string         `json:"demo"`
	Updates     []JourneyUpdate `json:"updates"`
}

// JourneyUpdate is a single devlog entry on a Journey2025Page.
type JourneyUpdate struct {
	Time        string   `json:"time"`
	Message     string   `json:"message"`
	Attachments []string `json:"attatchments"` // spelling matches scraper output
}

var _ Page = (*Journey2025Page)(nil)

func (p *Journey2025Page) Kind() Kind { return KindJourney2025 }

func (p *Journey2025Page) Key() UniqueKey {
	return UniqueKey(strconv.FormatUint(uint64(p.ID), 10))
}

func (p *Journey2025Page) Preview() Preview {
	return Preview{
		Img:         p.MainImage,
		Name:        p.Name,
		Description: p.Description,
		Props:       fmt.Sprintf("stonks: %d, updates: %d", p.Stonks, len(p.Updates)),
	}
}

func (p *Journey2025Page) sealed() {}
