package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/projectsearch/ai"
	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/storage"
)

// Target is the record store a Pipeline enriches.
type Target interface {
	Get(position int) (core.Page, *core.ComputedData, error)
	Pending() []int
	AugmentIfCurrent(position int, fp core.Fingerprint, computed *core.ComputedData) error
}

// Stats counts what a Pipeline has done since it was created.
type Stats struct {
	Embedded int64 // vectors computed by the embedder
	Cached   int64 // vectors served from the cache
	Stale    int64 // pages overwritten before their vector was stored
	Failed   int64 // pages that could not be enriched
}

// Pipeline enriches pages with embeddings on a worker pool.
type Pipeline struct {
	target      Target
	embedder    ai.Embedder
	cache       storage.EmbeddingCache
	pool        *ants.Pool
	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	progress    io.Writer
	logger      *slog.Logger

	inflight sync.WaitGroup

	embedded atomic.Int64
	cached   atomic.Int64
	stale    atomic.Int64
	failed   atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithCache sets an embedding cache consulted before the embedder.
func WithCache(cache storage.EmbeddingCache) Option {
	return func(p *Pipeline) error {
		p.cache = cache
		return nil
	}
}

// WithBatchSize sets how many pages are embedded per request.
// Default is 16.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithRetry sets the embedder retry policy.
// Default is 3 attempts starting at a 1s delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}

// WithProgress reports Run progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// NewPipeline creates a new enrichment pipeline.
func NewPipeline(target Target, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if target == nil {
		return nil, ErrTargetRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		target:      target,
		embedder:    embedder,
		pool:        pool,
		batchSize:   16,
		maxAttempts: 3,
		retryDelay:  time.Second,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "enrich")

	return p, nil
}

// Submit enriches the given positions in the background. Failures are logged
// and counted but not returned. Use Wait to block until submitted work ends.
func (p *Pipeline) Submit(positions ...int) error {
	for _, batch := range chunk(positions, p.batchSize) {
		p.inflight.Add(1)
		err := p.pool.Submit(func() {
			defer p.inflight.Done()
			if err := p.processBatch(context.Background(), batch); err != nil {
				p.logger.Error("error enriching batch", "records", len(batch), "err", err)
			}
		})
		if err != nil {
			p.inflight.Done()
			return err
		}
	}
	return nil
}

// Wait blocks until all work passed to Submit has finished.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// Run enriches the given positions and waits for them. It returns the
// errors of all failed batches joined together.
func (p *Pipeline) Run(ctx context.Context, positions []int) error {
	if len(positions) == 0 {
		return nil
	}

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, len(positions), p.batchSize)
		tracker.Start()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, batch := range chunk(positions, p.batchSize) {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.processBatch(ctx, batch); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			if tracker != nil {
				tracker.Increment(len(batch))
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	if tracker != nil {
		tracker.Finish()
	}
	p.logger.Info("enrichment run finished", "records", len(positions), "failed_batches", len(errs))
	return errors.Join(errs...)
}

// RunPending enriches every record that has no computed data.
func (p *Pipeline) RunPending(ctx context.Context) error {
	return p.Run(ctx, p.target.Pending())
}

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Embedded: p.embedded.Load(),
		Cached:   p.cached.Load(),
		Stale:    p.stale.Load(),
		Failed:   p.failed.Load(),
	}
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

type workItem struct {
	position    int
	fingerprint core.Fingerprint
	previous    *core.ComputedData
	text        string
	vector      []float32
}

// processBatch embeds one batch and writes the results back. Pages that
// disappear or change along the way are skipped.
func (p *Pipeline) processBatch(ctx context.Context, positions []int) error {
	items := make([]*workItem, 0, len(positions))
	for _, pos := range positions {
		page, previous, err := p.target.Get(pos)
		if err != nil {
			p.failed.Add(1)
			p.logger.Warn("skipping record", "position", pos, "err", err)
			continue
		}
		items = append(items, &workItem{
			position:    pos,
			fingerprint: core.FingerprintOf(page),
			previous:    previous,
			text:        core.EmbeddingText(page),
		})
	}

	var missing []*workItem
	for _, item := range items {
		if vec, ok := p.lookup(ctx, item.fingerprint); ok {
			item.vector = vec
			p.cached.Add(1)
			continue
		}
		missing = append(missing, item)
	}

	var errs []error
	if len(missing) > 0 {
		if err := p.embed(ctx, missing); err != nil {
			errs = append(errs, err)
		}
	}

	for _, item := range items {
		if item.vector == nil {
			continue
		}
		if err := p.store(item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) embed(ctx context.Context, items []*workItem) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.text
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, p.maxAttempts, p.retryDelay)
	if err != nil {
		p.failed.Add(int64(len(items)))
		return fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(items) {
		p.failed.Add(int64(len(items)))
		return fmt.Errorf("%w: expected %d, received %d", ErrResultMismatch, len(items), len(vectors))
	}

	var errs []error
	for i, item := range items {
		fitted, err := FitEmbedding(vectors[i])
		if err != nil {
			p.failed.Add(1)
			errs = append(errs, fmt.Errorf("position %d: %w", item.position, err))
			continue
		}
		item.vector = fitted
		p.embedded.Add(1)
		if p.cache != nil {
			if err := p.cache.Put(ctx, item.fingerprint, fitted); err != nil {
				p.logger.Warn("failed to cache embedding", "position", item.position, "err", err)
			}
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) lookup(ctx context.Context, fp core.Fingerprint) ([]float32, bool) {
	if p.cache == nil {
		return nil, false
	}
	vec, err := p.cache.Get(ctx, fp)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn("embedding cache lookup failed", "fingerprint", uint64(fp), "err", err)
		}
		return nil, false
	}
	if len(vec) != core.EmbeddingDim {
		return nil, false
	}
	return vec, true
}

func (p *Pipeline) store(item *workItem) error {
	computed := &core.ComputedData{Embedding: item.vector}
	if item.previous != nil {
		computed.AIDescription = item.previous.AIDescription
		computed.AICode = item.previous.AICode
	}

	err := p.target.AugmentIfCurrent(item.position, item.fingerprint, computed)
	switch {
	case errors.Is(err, storage.ErrStale):
		p.stale.Add(1)
		p.logger.Debug("record changed during enrichment, skipping", "position", item.position)
		return nil
	case err != nil:
		p.failed.Add(1)
		return fmt.Errorf("store embedding for position %d: %w", item.position, err)
	}
	return nil
}

func chunk(positions []int, size int) [][]int {
	var batches [][]int
	for start := 0; start < len(positions); start += size {
		end := min(start+size, len(positions))
		batches = append(batches, positions[start:end])
	}
	return batches
}
