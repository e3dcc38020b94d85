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

// Package vector compares and reshapes embedding vectors produced by an
// external embedding model. It never generates embeddings itself.
package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when two vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimensions differ")

	// ErrInvalidLength is returned when a projection target length is out of range.
	ErrInvalidLength = errors.New("invalid projection length")
)

// CosineSimilarity returns dot(a, b) / (|a| * |b|).
// Returns 0 if either vector has zero magnitude.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// DownProject shrinks v to newLen values. The source is split into newLen
// contiguous windows whose boundaries are interpolated over the float chunk
// size (start = floor(i*chunk), end = ceil((i+1)*chunk)); each window is
// replaced by its mean. Windows may overlap by one element when the lengths
// do not divide evenly.
func DownProject(v []float32, newLen int) ([]float32, error) {
	oldLen := len(v)
	if newLen <= 0 || newLen > oldLen {
		return nil, fmt.Errorf("%w: %d (source has %d)", ErrInvalidLength, newLen, oldLen)
	}

	result := make([]float32, newLen)
	chunk := float64(oldLen) / float64(newLen)

	for i := 0; i < newLen; i++ {
		start := int(math.Floor(float64(i) * chunk))
		end := min(int(math.Ceil(float64(i+1)*chunk)), oldLen)
		if start >= end {
			continue
		}

		var sum float64
		for _, x := range v[start:end] {
			sum += float64(x)
		}
		result[i] = float32(sum / float64(end-start))
	}

	return result, nil
}

// Normalize returns a copy of v scaled to unit length.
// A zero vector yields a zero vector of the same length.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}
