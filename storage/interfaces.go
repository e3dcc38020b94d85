package storage

import (
	"context"

	"github.com/poiesic/projectsearch/core"
)

// EmbeddingCache persists embedding vectors keyed by page content
// fingerprint, so unchanged pages are not re-embedded after a restart or a
// re-scrape. Implementations must be thread-safe.
type EmbeddingCache interface {
	// Get returns the cached vector for fp.
	// Returns ErrNotFound if nothing is cached.
	Get(ctx context.Context, fp core.Fingerprint) ([]float32, error)

	// Put stores vec under fp, replacing any previous value.
	Put(ctx context.Context, fp core.Fingerprint, vec []float32) error

	// Delete removes the vector cached under fp. Deleting a missing entry
	// is not an error.
	Delete(ctx context.Context, fp core.Fingerprint) error

	// Count returns the number of cached vectors.
	Count(ctx context.Context) (int, error)

	// Close closes the cache and releases resources.
	Close() error
}
