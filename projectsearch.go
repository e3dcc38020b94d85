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

// Package projectsearch ranks scraped project showcase pages against text
// queries.
//
// Service is the single owned entry point: it holds the in-memory record
// store, persists it as a JSON snapshot, and optionally enriches records with
// embeddings from an external model for similarity lookups. Construct one
// with Open at startup and Close it at shutdown.
package projectsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/projectsearch/ai"
	"github.com/poiesic/projectsearch/ai/openai"
	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/enrich"
	"github.com/poiesic/projectsearch/ranking"
	"github.com/poiesic/projectsearch/storage"
	"github.com/poiesic/projectsearch/storage/badger"
	"github.com/poiesic/projectsearch/store"
)

var (
	// ErrEmbedderRequired is returned by operations that need an embedding
	// service when none is configured.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrClosed is returned by operations on a closed service.
	ErrClosed = errors.New("service is closed")
)

// Service owns the record store and everything that feeds it. It is safe
// for concurrent use.
type Service struct {
	store          *store.Store
	embedder       ai.Embedder
	pipeline       *enrich.Pipeline
	cache          storage.EmbeddingCache
	ownsCache      bool
	watcher        *ranking.WeightsWatcher
	enrichOnIngest bool
	logger         *slog.Logger

	// mu orders ingests against Close so no enrichment is submitted
	// once Close has started waiting for the pipeline.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// Option configures a Service.
type Option func(*serviceOptions) error

type serviceOptions struct {
	logger         *slog.Logger
	weights        *ranking.Weights
	weightsPath    string
	embedder       ai.Embedder
	aiConfig       *ai.Config
	cacheDir       string
	cache          storage.EmbeddingCache
	enrichOpts     []enrich.Option
	enrichOnIngest bool
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) error {
		o.logger = logger
		return nil
	}
}

// WithWeights sets the ranking weights.
func WithWeights(weights *ranking.Weights) Option {
	return func(o *serviceOptions) error {
		if weights == nil {
			return errors.New("weights cannot be nil")
		}
		o.weights = weights
		return nil
	}
}

// WithWeightsFile loads ranking weights from a YAML file and reloads them
// whenever the file changes.
func WithWeightsFile(path string) Option {
	return func(o *serviceOptions) error {
		o.weightsPath = path
		return nil
	}
}

// WithEmbedder sets the embedding service used for enrichment and semantic
// search.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *serviceOptions) error {
		o.embedder = embedder
		return nil
	}
}

// WithAIConfig connects to an OpenAI-compatible embedding service.
// Ignored when WithEmbedder is also given.
func WithAIConfig(config *ai.Config) Option {
	return func(o *serviceOptions) error {
		o.aiConfig = config
		return nil
	}
}

// WithEmbeddingCacheDir persists computed embeddings in a BadgerDB directory
// so unchanged pages are not re-embedded.
func WithEmbeddingCacheDir(dir string) Option {
	return func(o *serviceOptions) error {
		o.cacheDir = dir
		return nil
	}
}

// WithEmbeddingCache uses an already open cache. The service does not close it.
func WithEmbeddingCache(cache storage.EmbeddingCache) Option {
	return func(o *serviceOptions) error {
		o.cache = cache
		return nil
	}
}

// WithEnrichOptions passes options to the enrichment pipeline.
func WithEnrichOptions(opts ...enrich.Option) Option {
	return func(o *serviceOptions) error {
		o.enrichOpts = append(o.enrichOpts, opts...)
		return nil
	}
}

// WithEnrichOnIngest embeds every ingested page in the background.
// Requires an embedder.
func WithEnrichOnIngest(enabled bool) Option {
	return func(o *serviceOptions) error {
		o.enrichOnIngest = enabled
		return nil
	}
}

// Open creates a service backed by the snapshot at snapshotPath. An empty
// path gives an in-memory service whose Snapshot returns
// storage.ErrNotBacked. A missing or unreadable snapshot starts empty.
func Open(snapshotPath string, opts ...Option) (*Service, error) {
	options := &serviceOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}
	options.logger = logger

	weights := options.weights
	if options.weightsPath != "" {
		loaded, err := ranking.LoadWeights(options.weightsPath)
		if err != nil {
			return nil, err
		}
		weights = loaded
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if weights != nil {
		storeOpts = append(storeOpts, store.WithWeights(weights))
	}
	var (
		st  *store.Store
		err error
	)
	if snapshotPath == "" {
		st, err = store.New(storeOpts...)
	} else {
		st, err = store.Load(snapshotPath, storeOpts...)
	}
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:          st,
		embedder:       options.embedder,
		cache:          options.cache,
		enrichOnIngest: options.enrichOnIngest,
		logger:         logger.With("component", "service"),
	}

	if err := s.setup(options); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *Service) setup(options *serviceOptions) error {
	if s.embedder == nil && options.aiConfig != nil {
		embedder, err := openai.NewEmbedder(options.aiConfig)
		if err != nil {
			return fmt.Errorf("create embedder: %w", err)
		}
		s.embedder = embedder
	}

	if s.cache == nil && options.cacheDir != "" {
		cache, err := badger.OpenEmbeddingCache(options.cacheDir)
		if err != nil {
			return err
		}
		s.cache = cache
		s.ownsCache = true
	}

	if s.embedder != nil {
		enrichOpts := []enrich.Option{enrich.WithLogger(options.logger)}
		if s.cache != nil {
			enrichOpts = append(enrichOpts, enrich.WithCache(s.cache))
		}
		enrichOpts = append(enrichOpts, options.enrichOpts...)
		pipeline, err := enrich.NewPipeline(s.store, s.embedder, enrichOpts...)
		if err != nil {
			return err
		}
		s.pipeline = pipeline
	} else if s.enrichOnIngest {
		return ErrEmbedderRequired
	}

	if options.weightsPath != "" {
		watcher, err := ranking.NewWeightsWatcher(options.weightsPath, func(w *ranking.Weights) {
			if err := s.store.SetWeights(w); err != nil {
				s.logger.Error("rejected reloaded weights", "err", err)
			}
		}, options.logger)
		if err != nil {
			return err
		}
		watcher.Start()
		s.watcher = watcher
	}

	return nil
}

// Store returns the underlying record store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Ingest inserts or overwrites a page. Returns its position and whether it
// was newly inserted.
func (s *Service) Ingest(ctx context.Context, page core.Page) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, ErrClosed
	}
	pos, inserted, err := s.store.Upsert(page)
	if err != nil {
		return 0, false, err
	}
	if s.enrichOnIngest {
		if err := s.pipeline.Submit(pos); err != nil {
			s.logger.Warn("failed to schedule enrichment", "position", pos, "err", err)
		}
	}
	return pos, inserted, nil
}

// IngestJSON decodes a page from its tagged JSON form and ingests it.
// Returns core.ErrMalformed for payloads that are not a known page variant.
func (s *Service) IngestJSON(ctx context.Context, data []byte) (int, bool, error) {
	page, err := core.UnmarshalPage(data)
	if err != nil {
		return 0, false, err
	}
	return s.Ingest(ctx, page)
}

// Search returns the k best matches for query, highest rank first.
func (s *Service) Search(ctx context.Context, query string, k int) []core.SearchResult {
	return s.store.Search(query, k)
}

// Preview returns the full page at position.
func (s *Service) Preview(ctx context.Context, position int) (core.Page, error) {
	page, _, err := s.store.Get(position)
	return page, err
}

// Augment replaces the computed data at position.
func (s *Service) Augment(ctx context.Context, position int, computed *core.ComputedData) error {
	return s.store.Augment(position, computed)
}

// SetExtras replaces the computed data at position with computed. An
// embedding wider than core.EmbeddingDim is down-projected to fit.
func (s *Service) SetExtras(ctx context.Context, position int, computed *core.ComputedData) error {
	if computed == nil {
		return fmt.Errorf("%w: computed data is nil", core.ErrInvalidComputedData)
	}
	fitted, err := enrich.FitEmbedding(computed.Embedding)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidComputedData, err)
	}
	next := *computed
	next.Embedding = fitted
	return s.store.Augment(position, &next)
}

// Similar returns the k records nearest to the one at position by embedding.
func (s *Service) Similar(ctx context.Context, position, k int) ([]core.SearchResult, error) {
	return s.store.Similar(position, k)
}

// SemanticSearch embeds text and returns the k records nearest to it.
func (s *Service) SemanticSearch(ctx context.Context, text string, k int) ([]core.SearchResult, error) {
	if s.embedder == nil {
		return nil, ErrEmbedderRequired
	}
	vec, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	fitted, err := enrich.FitEmbedding(vec)
	if err != nil {
		return nil, err
	}
	return s.store.SearchVector(fitted, k)
}

// Enrich embeds every record that has no computed data and waits for it.
func (s *Service) Enrich(ctx context.Context) error {
	if s.pipeline == nil {
		return ErrEmbedderRequired
	}
	return s.pipeline.RunPending(ctx)
}

// EnrichStats reports enrichment counters. Zero without an embedder.
func (s *Service) EnrichStats() enrich.Stats {
	if s.pipeline == nil {
		return enrich.Stats{}
	}
	return s.pipeline.Stats()
}

// Snapshot writes the store to its backing file.
func (s *Service) Snapshot(ctx context.Context) error {
	return s.store.Save()
}

// Len returns the number of records.
func (s *Service) Len() int {
	return s.store.Len()
}

// PendingCount returns the number of records without computed data.
func (s *Service) PendingCount() int {
	return len(s.store.Pending())
}

// Close waits for background enrichment, flushes the snapshot when the
// store is file-backed, and releases resources. It is safe to call more
// than once.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.pipeline != nil {
			s.pipeline.Wait()
		}
		if s.store.Path() != "" {
			if saveErr := s.store.Save(); saveErr != nil {
				s.logger.Error("error saving snapshot on close", "err", saveErr)
				err = saveErr
			}
		}
		err = errors.Join(err, s.release())
	})
	return err
}

func (s *Service) release() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.ownsCache && s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("error closing embedding cache", "err", err)
			return err
		}
	}
	return nil
}
