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
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidWeights indicates a weights file or value failed validation.
var ErrInvalidWeights = errors.New("invalid ranking weights")

// Weights holds the empirically tuned constants of the ranking formula.
// Every field may be overridden from a YAML file; fields missing from the
// file keep their defaults.
type Weights struct {
	// Term decay: w(i) = DecayFloor + DecayScale * exp(-DecayRate * i)
	DecayFloor float32 `yaml:"decay_floor"`
	DecayScale float32 `yaml:"decay_scale"`
	DecayRate  float32 `yaml:"decay_rate"`

	// Per matching token, scaled by the term weight
	TitleMatch       float32 `yaml:"title_match"`
	DescriptionMatch float32 `yaml:"description_match"`

	// Flat bonus per (update message, term) match once relevance exceeds UpdateGate
	UpdateMatch float32 `yaml:"update_match"`
	UpdateGate  float32 `yaml:"update_gate"`

	// Scores below RelevanceFloor are pushed down by RejectPenalty
	RelevanceFloor float32 `yaml:"relevance_floor"`
	RejectPenalty  float32 `yaml:"reject_penalty"`

	MinActiveTime   float32 `yaml:"min_active_time"`
	InactivePenalty float32 `yaml:"inactive_penalty"`
	MojibakePenalty float32 `yaml:"mojibake_penalty"`

	DescriptionLengthScale float32 `yaml:"description_length_scale"`
	DescriptionLengthCap   float32 `yaml:"description_length_cap"`
	UpdateCountScale       float32 `yaml:"update_count_scale"`
	UpdateCountCap         float32 `yaml:"update_count_cap"`
	FollowerScale          float32 `yaml:"follower_scale"`
	FollowerCap            float32 `yaml:"follower_cap"`
	TimeScale              float32 `yaml:"time_scale"`
	TimeCap                float32 `yaml:"time_cap"`
	DemoBonus              float32 `yaml:"demo_bonus"`

	// Legacy schema: followers + LegacyStonks * stonks
	LegacyStonks float32 `yaml:"legacy_stonks"`
}

// DefaultWeights returns the tuned production weights.
func DefaultWeights() *Weights {
	return &Weights{
		DecayFloor: 0.45,
		DecayScale: 0.55,
		DecayRate:  0.2231,

		TitleMatch:       5.11,
		DescriptionMatch: 3.27,

		UpdateMatch: 0.9652,
		UpdateGate:  1.0,

		RelevanceFloor: 1.0,
		RejectPenalty:  50.0,

		MinActiveTime:   1000,
		InactivePenalty: 1.0,
		MojibakePenalty: 0.8,

		DescriptionLengthScale: 90,
		DescriptionLengthCap:   1.2,
		UpdateCountScale:       9,
		UpdateCountCap:         2.3,
		FollowerScale:          4.5,
		FollowerCap:            4.3,
		TimeScale:              8000,
		TimeCap:                4.6,
		DemoBonus:              0.85,

		LegacyStonks: 0.2,
	}
}

// Validate checks that every divisor is positive.
func (w *Weights) Validate() error {
	scales := []struct {
		name  string
		value float32
	}{
		{"description_length_scale", w.DescriptionLengthScale},
		{"update_count_scale", w.UpdateCountScale},
		{"follower_scale", w.FollowerScale},
		{"time_scale", w.TimeScale},
	}
	for _, s := range scales {
		if s.value <= 0 {
			return fmt.Errorf("%w: %s must be greater than 0", ErrInvalidWeights, s.name)
		}
	}
	return nil
}

// ParseWeights decodes YAML over the default weights.
func ParseWeights(data []byte) (*Weights, error) {
	w := DefaultWeights()
	if err := yaml.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// LoadWeights reads a YAML weights file.
func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}
	return ParseWeights(data)
}
