// Package mock provides a test double for ai.Embedder.
//
// MockEmbedder produces deterministic unit vectors derived from a hash of the
// input text, so tests can run without an embedding service and still get
// stable similarity rankings.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service unavailable")
//	}
//
//	count := embedder.CallCount()
package mock
