package search

import (
	"context"

	"github.com/knowd-io/knowd/internal/domain"
)

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorQuerier performs k-NN search in the vector store.
type VectorQuerier interface {
	Query(ctx context.Context, embedding []float32, topK int,
		filters map[string]any, tags []string) ([]domain.Match, error)
}

// ResultCache fronts the search path with a bounded, time-expiring cache.
type ResultCache interface {
	Get(key string) ([]domain.Match, bool)
	Put(key string, value []domain.Match)
}
