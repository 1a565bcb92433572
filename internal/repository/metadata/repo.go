// Package metadata persists per-document status records in Redis hashes.
package metadata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/knowd-io/knowd/internal/domain"
)

// store is the consumer interface for metadata records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Repo implements the pipeline's MetadataStore contract.
type Repo struct {
	store  store
	prefix string
}

// New creates a metadata repository. prefix namespaces all keys.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Put writes a metadata record, overwriting any previous state.
func (r *Repo) Put(ctx context.Context, rec domain.MetadataRecord) error {
	fields := map[string]string{
		"status":     string(rec.Status),
		"version":    strconv.Itoa(rec.Version),
		"updated_at": rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.HSet(ctx, r.key(rec.DocID), fields); err != nil {
		return fmt.Errorf("%w: put %s: %w", domain.ErrMetadataStoreUnavailable, rec.DocID, err)
	}
	return nil
}

// Get returns the metadata record for docID, or ErrDocumentNotFound.
func (r *Repo) Get(ctx context.Context, docID string) (domain.MetadataRecord, error) {
	fields, err := r.store.HGetAll(ctx, r.key(docID))
	if err != nil {
		return domain.MetadataRecord{}, fmt.Errorf(
			"%w: get %s: %w", domain.ErrMetadataStoreUnavailable, docID, err)
	}
	if len(fields) == 0 {
		return domain.MetadataRecord{}, domain.ErrDocumentNotFound
	}
	return parseRecord(docID, fields), nil
}

// Delete removes the metadata record for docID. Missing keys are not an error.
func (r *Repo) Delete(ctx context.Context, docID string) error {
	if err := r.store.Del(ctx, r.key(docID)); err != nil {
		return fmt.Errorf("%w: delete %s: %w", domain.ErrMetadataStoreUnavailable, docID, err)
	}
	return nil
}

func (r *Repo) key(docID string) string {
	return r.prefix + "meta:" + docID
}

// parseRecord tolerates partially written hashes: unparseable fields fall
// back to zero values rather than failing the read.
func parseRecord(docID string, fields map[string]string) domain.MetadataRecord {
	rec := domain.MetadataRecord{
		DocID:  docID,
		Status: domain.DocStatus(fields["status"]),
	}
	if v, err := strconv.Atoi(fields["version"]); err == nil {
		rec.Version = v
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		rec.UpdatedAt = ts
	}
	return rec
}
