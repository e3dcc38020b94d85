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
	"math"
)

// ValidatePage validates a Page according to domain rules.
//
// Validation rules:
//   - page must not be nil
//   - Summer2025 pages must carry a URL (their unique key)
//
// Journey2025 pages are keyed by a numeric id, and 0 is a valid id.
func ValidatePage(page Page) error {
	switch p := page.(type) {
	case nil:
		return fmt.Errorf("%w: page is nil", ErrInvalidPage)
	case *Summer2025Page:
		if p == nil {
			return fmt.Errorf("%w: page is nil", ErrInvalidPage)
		}
		if p.URL == "" {
			return fmt.Errorf("%w: %w", ErrInvalidPage, ErrEmptyKey)
		}
	case *Journey2025Page:
		if p == nil {
			return fmt.Errorf("%w: page is nil", ErrInvalidPage)
		}
	}
	return nil
}

// ValidateComputedData checks that the embedding has the fixed width and
// that every value is finite. NaN and infinities cannot be written to the
// JSON snapshot.
func ValidateComputedData(computed *ComputedData) error {
	if computed == nil {
		return fmt.Errorf("%w: computed data is nil", ErrInvalidComputedData)
	}
	if len(computed.Embedding) != EmbeddingDim {
		return fmt.Errorf("%w: embedding has %d dimensions, want %d",
			ErrInvalidComputedData, len(computed.Embedding), EmbeddingDim)
	}
	for i, v := range computed.Embedding {
		if !finite(v) {
			return fmt.Errorf("%w: embedding[%d] is %v", ErrInvalidComputedData, i, v)
		}
	}
	if !finite(computed.AIDescription) {
		return fmt.Errorf("%w: ai_description is %v", ErrInvalidComputedData, computed.AIDescription)
	}
	if !finite(computed.AICode) {
		return fmt.Errorf("%w: ai_code is %v", ErrInvalidComputedData, computed.AICode)
	}
	return nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
