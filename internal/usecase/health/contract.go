package health

import "context"

// MetadataPinger checks metadata store availability.
type MetadataPinger interface {
	Ping(ctx context.Context) error
}

// VectorChecker checks vector store availability.
type VectorChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
