package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document is a unit of knowledge submitted for vectorization.
// Content is immutable once vectorized; re-saving the same DocID
// overwrites the vector and bumps the metadata version.
type Document struct {
	DocID    string
	Content  string
	Metadata map[string]any
	Tag      string
}

// Validate checks the invariants required before any store is touched.
func (d Document) Validate() error {
	if strings.TrimSpace(d.DocID) == "" {
		return fmt.Errorf("%w: doc_id is required", ErrInvalidDocument)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidDocument)
	}
	return nil
}

// DocStatus is the vectorization state recorded in the metadata store.
type DocStatus string

// Document status values.
const (
	StatusPending   DocStatus = "pending"
	StatusCompleted DocStatus = "completed"
	StatusFailed    DocStatus = "failed"
)

// MetadataRecord is the per-document status row owned by the metadata store.
// It is eventually consistent with the vector store: a vector may exist while
// the record still shows pending or failed.
type MetadataRecord struct {
	DocID     string
	Status    DocStatus
	Version   int
	UpdatedAt time.Time
}
