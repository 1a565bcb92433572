package tools

import (
	"context"

	"github.com/knowd-io/knowd/internal/domain"
	"github.com/knowd-io/knowd/internal/registry"
	"github.com/knowd-io/knowd/internal/usecase/search"
)

// Searcher is the slice of the search service the tool needs.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]domain.Match, error)
}

// NewSearch returns the semantic search tool.
func NewSearch(searcher Searcher) registry.Tool {
	return registry.NewFunc("search",
		"Semantic search over stored documents with optional filters and tags.",
		func(ctx context.Context, args, kwargs map[string]any) (map[string]any, error) {
			query, err := stringArg(args, kwargs, "query")
			if err != nil {
				return nil, err
			}
			topK, err := intArg(args, kwargs, "top_k", 0)
			if err != nil {
				return nil, err
			}
			filters, err := mapArg(args, kwargs, "filters")
			if err != nil {
				return nil, err
			}
			tags, err := stringsArg(args, kwargs, "tags")
			if err != nil {
				return nil, err
			}

			matches, err := searcher.Search(ctx, search.Request{
				Query:   query,
				TopK:    topK,
				Filters: filters,
				Tags:    tags,
			})
			if err != nil {
				return failure(err.Error()), nil
			}

			listed := make([]map[string]any, len(matches))
			for i, m := range matches {
				listed[i] = map[string]any{
					"doc_id":  m.DocID,
					"score":   m.Score,
					"payload": m.Payload,
				}
			}
			return success(map[string]any{"matches": listed, "count": len(listed)}), nil
		})
}
