package domain

import "errors"

var (
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidDocument signals a document that fails validation.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrExecutionTimeout signals a tool invocation that exceeded its deadline.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrRateLimited signals a rate limit hit at the embedding provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorStoreUnavailable signals a vector store connectivity failure.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrMetadataStoreUnavailable signals a metadata store connectivity failure.
	ErrMetadataStoreUnavailable = errors.New("metadata store unavailable")
)
