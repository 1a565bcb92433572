package vectorize

import (
	"context"

	"github.com/knowd-io/knowd/internal/domain"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorWriter writes and removes vectors in the vector store.
type VectorWriter interface {
	Upsert(ctx context.Context, rec domain.VectorRecord) error
	Delete(ctx context.Context, docID string) error
}

// MetadataStore reads and writes per-document status records.
// It fails independently of the vector store; the pipeline never assumes
// a write to one implies the other succeeded.
type MetadataStore interface {
	Get(ctx context.Context, docID string) (domain.MetadataRecord, error)
	Put(ctx context.Context, rec domain.MetadataRecord) error
	Delete(ctx context.Context, docID string) error
}
