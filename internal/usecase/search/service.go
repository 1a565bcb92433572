// Package search serves semantic queries with a result cache in front of
// the embed-then-query path.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/knowd-io/knowd/internal/cache"
	"github.com/knowd-io/knowd/internal/domain"
)

// DefaultTopK is the result count when the caller does not specify one.
const DefaultTopK = 10

// Request is one semantic search.
type Request struct {
	Query   string
	TopK    int
	Filters map[string]any
	Tags    []string
}

// Service handles semantic search.
type Service struct {
	embed   Embedder
	vectors VectorQuerier
	results ResultCache
	logger  *zap.Logger
}

// New creates a search service.
func New(embed Embedder, vectors VectorQuerier, results ResultCache, logger *zap.Logger) *Service {
	return &Service{embed: embed, vectors: vectors, results: results, logger: logger}
}

// Search returns ranked matches for the request, serving repeated
// identical queries from the cache within its TTL window.
func (s *Service) Search(ctx context.Context, req Request) ([]domain.Match, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidDocument)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	key := cache.Key(req.Query, topK, req.Filters, req.Tags)
	if matches, ok := s.results.Get(key); ok {
		return matches, nil
	}

	emb, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.vectors.Query(ctx, emb.Embedding, topK, req.Filters, req.Tags)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	s.results.Put(key, matches)
	return matches, nil
}
