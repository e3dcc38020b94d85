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

// Package topk keeps the k best (score, position) pairs seen in a stream
// without sorting the whole stream.
package topk

import (
	"cmp"
	"container/heap"
	"slices"
)

// Entry is a scored record position.
type Entry struct {
	Score    float32
	Position int
}

// ranksAbove reports whether a orders before b in the final result:
// higher score first, lower position breaking ties.
func ranksAbove(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Position < b.Position
}

// entryHeap is a min-heap whose root is the entry that ranks lowest.
type entryHeap []Entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return ranksAbove(h[j], h[i]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(Entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Selector retains at most k entries. It is not safe for concurrent use.
type Selector struct {
	k int
	h entryHeap
}

// New returns a Selector with capacity k. A non-positive k retains nothing.
func New(k int) *Selector {
	if k < 0 {
		k = 0
	}
	return &Selector{
		k: k,
		h: make(entryHeap, 0, min(k, 1024)),
	}
}

// Offer considers one entry. Below capacity it is always kept; at capacity it
// replaces the current lowest entry only if it ranks strictly above it.
func (s *Selector) Offer(score float32, position int) {
	if s.k == 0 {
		return
	}
	e := Entry{Score: score, Position: position}
	if len(s.h) < s.k {
		heap.Push(&s.h, e)
		return
	}
	if ranksAbove(e, s.h[0]) {
		s.h[0] = e
		heap.Fix(&s.h, 0)
	}
}

// Len returns the number of retained entries.
func (s *Selector) Len() int {
	return len(s.h)
}

// Drain returns the retained entries sorted by descending score, ties broken
// by ascending position, and empties the selector.
func (s *Selector) Drain() []Entry {
	out := make([]Entry, len(s.h))
	copy(out, s.h)
	s.h = s.h[:0]

	slices.SortFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return out
}
