package enrich

import (
	"fmt"

	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/vector"
)

// FitEmbedding adapts a model's output to the stored embedding width.
// Longer vectors are down-projected by window averaging; the result is
// normalized to unit length.
func FitEmbedding(vec []float32) ([]float32, error) {
	if len(vec) < core.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d, want at least %d", ErrEmbeddingTooShort, len(vec), core.EmbeddingDim)
	}
	if len(vec) > core.EmbeddingDim {
		projected, err := vector.DownProject(vec, core.EmbeddingDim)
		if err != nil {
			return nil, err
		}
		vec = projected
	}
	return vector.Normalize(vec), nil
}
