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

// Package store holds project pages in memory and answers ranked queries
// over them.
//
// A Store is an append-only sequence of records, each a page plus optional
// computed data, and an index from unique key to position. Both live under a
// single RWMutex: writers (Upsert, Augment, Save) take it exclusively and the
// index is updated inside the same critical section as the sequence, so a
// key is never indexed without its record and vice versa. Readers (Search,
// Get, Similar) share it.
//
// Positions are stable. A record is never removed or moved; re-submitting a
// page with an existing key overwrites it in place.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/ranking"
	"github.com/poiesic/projectsearch/storage"
	"github.com/poiesic/projectsearch/topk"
	"github.com/poiesic/projectsearch/vector"
)

type record struct {
	page     core.Page
	computed *core.ComputedData
}

// Store is the in-memory record store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []record
	index   map[core.UniqueKey]int
	path    string

	weights atomic.Pointer[ranking.Weights]
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithWeights sets the ranking weights used by Search.
// Default is ranking.DefaultWeights().
func WithWeights(weights *ranking.Weights) Option {
	return func(s *Store) error {
		if weights == nil {
			return errors.New("weights cannot be nil")
		}
		if err := weights.Validate(); err != nil {
			return err
		}
		s.weights.Store(weights)
		return nil
	}
}

// New creates an empty store with no backing file.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		index:  make(map[core.UniqueKey]int),
		logger: slog.Default(),
	}
	s.weights.Store(ranking.DefaultWeights())

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "store")
	return s, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Path returns the backing file, or "" for an unbacked store.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// SetWeights swaps the ranking weights used by subsequent searches.
// Searches already running finish with the weights they started with.
func (s *Store) SetWeights(weights *ranking.Weights) error {
	if weights == nil {
		return errors.New("weights cannot be nil")
	}
	if err := weights.Validate(); err != nil {
		return err
	}
	s.weights.Store(weights)
	return nil
}

// Weights returns the ranking weights currently in effect.
func (s *Store) Weights() *ranking.Weights {
	return s.weights.Load()
}

// Upsert inserts page, or overwrites the record with the same key.
// Overwriting clears the record's computed data since it described the old
// content. Returns the record's position and whether it was newly inserted.
func (s *Store) Upsert(page core.Page) (int, bool, error) {
	if err := core.ValidatePage(page); err != nil {
		return 0, false, err
	}
	key := page.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.index[key]; ok {
		s.records[pos] = record{page: page}
		return pos, false, nil
	}

	pos := len(s.records)
	s.records = append(s.records, record{page: page})
	s.index[key] = pos
	return pos, true, nil
}

// Lookup returns the position of the record with the given key.
func (s *Store) Lookup(key core.UniqueKey) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[key]
	return pos, ok
}

// Get returns the page and a copy of the computed data at position.
// The returned page is shared with the store and must not be modified.
func (s *Store) Get(position int) (core.Page, *core.ComputedData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkPosition(position); err != nil {
		return nil, nil, err
	}
	rec := s.records[position]
	return rec.page, rec.computed.Clone(), nil
}

// Augment attaches computed data to the record at position, replacing any
// previous value.
func (s *Store) Augment(position int, computed *core.ComputedData) error {
	if err := core.ValidateComputedData(computed); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPosition(position); err != nil {
		return err
	}
	s.records[position].computed = computed.Clone()
	return nil
}

// AugmentIfCurrent is Augment guarded by a content check: it fails with
// storage.ErrStale when the record at position no longer has fingerprint fp,
// meaning it was overwritten after the caller read it.
func (s *Store) AugmentIfCurrent(position int, fp core.Fingerprint, computed *core.ComputedData) error {
	if err := core.ValidateComputedData(computed); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPosition(position); err != nil {
		return err
	}
	if current := core.FingerprintOf(s.records[position].page); current != fp {
		return fmt.Errorf("%w: position %d", storage.ErrStale, position)
	}
	s.records[position].computed = computed.Clone()
	return nil
}

// Pending returns the positions of records with no computed data, in order.
func (s *Store) Pending() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []int
	for i, rec := range s.records {
		if rec.computed == nil {
			pending = append(pending, i)
		}
	}
	return pending
}

// Search scores every record against query and returns the best k, highest
// rank first. For a non-empty query, records scoring below zero are dropped;
// an empty query lists the whole store by popularity.
func (s *Store) Search(query string, k int) []core.SearchResult {
	q := ranking.ParseQuery(query)
	ranker := ranking.NewRanker(s.weights.Load())
	filter := !q.IsEmpty()

	s.mu.RLock()
	defer s.mu.RUnlock()

	selector := topk.New(k)
	for i, rec := range s.records {
		score := ranker.Score(rec.page, q, rec.computed)
		if filter && score < 0 {
			continue
		}
		selector.Offer(score, i)
	}
	return s.results(selector.Drain())
}

// Similar returns the k records whose embeddings are closest to the record
// at position, excluding the record itself. Ranks are cosine similarities.
func (s *Store) Similar(position, k int) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkPosition(position); err != nil {
		return nil, err
	}
	source := s.records[position].computed
	if source == nil {
		return nil, fmt.Errorf("%w: position %d", storage.ErrNoEmbedding, position)
	}
	return s.nearest(source.Embedding, k, position)
}

// SearchVector returns the k records whose embeddings are closest to vec.
// Records without computed data are skipped.
func (s *Store) SearchVector(vec []float32, k int) ([]core.SearchResult, error) {
	if len(vec) != core.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(vec), core.EmbeddingDim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nearest(vec, k, -1)
}

// nearest must be called with s.mu held.
func (s *Store) nearest(vec []float32, k, exclude int) ([]core.SearchResult, error) {
	selector := topk.New(k)
	for i, rec := range s.records {
		if i == exclude || rec.computed == nil {
			continue
		}
		sim, err := vector.CosineSimilarity(vec, rec.computed.Embedding)
		if err != nil {
			return nil, err
		}
		selector.Offer(sim, i)
	}
	return s.results(selector.Drain()), nil
}

// results must be called with s.mu held.
func (s *Store) results(entries []topk.Entry) []core.SearchResult {
	results := make([]core.SearchResult, len(entries))
	for i, e := range entries {
		page := s.records[e.Position].page
		results[i] = core.SearchResult{
			ID:    e.Position,
			Rank:  e.Score,
			Event: string(page.Key()),
			Page:  page.Preview(),
		}
	}
	return results
}

func (s *Store) checkPosition(position int) error {
	if position < 0 || position >= len(s.records) {
		return fmt.Errorf("%w: position %d of %d", storage.ErrNotFound, position, len(s.records))
	}
	return nil
}
