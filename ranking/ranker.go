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

package ranking

import (
	"math"
	"strings"

	"github.com/poiesic/projectsearch/core"
)

// mojibakeEmDash is an em dash encoded as UTF-8 and decoded as Windows-1252,
// a marker of scraper encoding corruption.
const mojibakeEmDash = "â€”"

// Ranker scores pages against queries. It holds no mutable state and is safe
// for concurrent use.
type Ranker struct {
	weights *Weights
}

// NewRanker creates a ranker. A nil weights argument selects DefaultWeights.
func NewRanker(weights *Weights) *Ranker {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Ranker{weights: weights}
}

// Weights returns the weights in use.
func (r *Ranker) Weights() *Weights {
	return r.weights
}

// Score returns the relevance of page to q. Higher is better; a negative
// score on a non-empty query marks the page as rejected.
func (r *Ranker) Score(page core.Page, q Query, extra *core.ComputedData) float32 {
	switch p := page.(type) {
	case *core.Summer2025Page:
		return r.scoreSummer2025(p, q)
	case *core.Journey2025Page:
		return r.scoreJourney2025(p)
	default:
		return 0
	}
}

// TermWeight returns the decay weight of the i-th query term.
func (r *Ranker) TermWeight(i int) float32 {
	w := r.weights
	return w.DecayFloor + w.DecayScale*float32(math.Exp(float64(-w.DecayRate*float32(i))))
}

func (r *Ranker) scoreSummer2025(p *core.Summer2025Page, q Query) float32 {
	w := r.weights
	var rank float32

	titleTokens := strings.Fields(strings.ToLower(p.Name))
	descTokens := strings.Fields(strings.ToLower(p.Description))

	for i, term := range q.Terms {
		termWeight := r.TermWeight(i)
		rank += float32(countContaining(titleTokens, term)) * w.TitleMatch * termWeight
		rank += float32(countContaining(descTokens, term)) * w.DescriptionMatch * termWeight
	}

	// Devlogs only count once the title or description is relevant.
	if rank > w.UpdateGate {
		messages := make([]string, len(p.Updates))
		for i, u := range p.Updates {
			messages[i] = strings.ToLower(u.Message)
		}
		for _, term := range q.Terms {
			for _, msg := range messages {
				if strings.Contains(msg, term) {
					rank += w.UpdateMatch
				}
			}
		}
	}

	if rank < w.RelevanceFloor {
		rank -= w.RejectPenalty
	}

	timeValue := float32(p.Time)
	if timeValue < w.MinActiveTime {
		rank -= w.InactivePenalty
	}
	if strings.Contains(p.Description, mojibakeEmDash) {
		rank -= w.MojibakePenalty
	}

	rank += min(sqrt32(float32(len(p.Description))/w.DescriptionLengthScale), w.DescriptionLengthCap)
	rank += min(sqrt32(float32(len(p.Updates))/w.UpdateCountScale), w.UpdateCountCap)
	rank += min(float32(p.Followers)/w.FollowerScale, w.FollowerCap)
	rank += min(timeValue/w.TimeScale, w.TimeCap)

	if p.Demo != nil {
		rank += w.DemoBonus
	}

	return rank
}

// scoreJourney2025 ranks legacy pages by popularity alone.
func (r *Ranker) scoreJourney2025(p *core.Journey2025Page) float32 {
	return float32(p.Followers) + float32(p.Stonks)*r.weights.LegacyStonks
}

func countContaining(tokens []string, term string) int {
	n := 0
	for _, tok := range tokens {
		if strings.Contains(tok, term) {
			n++
		}
	}
	return n
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
