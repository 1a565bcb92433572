// Package vectorize orchestrates the document pipeline: embed with retry,
// write the vector, then sync status metadata — tolerating failure of each
// backend independently.
package vectorize

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/knowd-io/knowd/internal/domain"
)

// Config holds pipeline policy. Limits are operational inputs, not
// semantic constants.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxBatchSize   int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		MaxBatchSize:   50,
	}
}

// Service is the vectorization pipeline.
type Service struct {
	embed   Embedder
	vectors VectorWriter
	meta    MetadataStore
	cfg     Config
	logger  *zap.Logger

	// sleep is swappable so tests can skip backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a pipeline service.
func New(embed Embedder, vectors VectorWriter, meta MetadataStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultConfig().MaxBatchSize
	}
	return &Service{
		embed:   embed,
		vectors: vectors,
		meta:    meta,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// SaveDocument runs one document through the pipeline.
//
// Per-document state machine: pending -> (embedding retry loop) ->
// {failed | embedded} -> (vector write) -> {failed | vector_written} ->
// (metadata sync, best-effort) -> completed | completed_metadata_warning.
// Failed is terminal for this invocation only; the next call restarts
// from pending.
func (s *Service) SaveDocument(ctx context.Context, doc domain.Document) Outcome {
	if err := doc.Validate(); err != nil {
		// Fail fast: no partial state is written for invalid input.
		return NewFailed(doc.DocID, err)
	}

	emb, err := s.embedWithRetry(ctx, doc.Content)
	if err != nil {
		s.markFailed(ctx, doc.DocID)
		return NewFailed(doc.DocID, fmt.Errorf("embed document: %w", err))
	}

	rec := domain.VectorRecord{
		DocID:     doc.DocID,
		Embedding: emb.Embedding,
		Payload:   buildPayload(doc),
	}
	if err := s.vectors.Upsert(ctx, rec); err != nil {
		// The document must never read completed without a vector write.
		s.markFailed(ctx, doc.DocID)
		return NewFailed(doc.DocID, fmt.Errorf("vector upsert: %w", err))
	}

	version := s.nextVersion(ctx, doc.DocID)
	metaRec := domain.MetadataRecord{
		DocID:     doc.DocID,
		Status:    domain.StatusCompleted,
		Version:   version,
		UpdatedAt: s.now(),
	}
	if err := s.meta.Put(ctx, metaRec); err != nil {
		// The vector write stands: the stores are independent and there is
		// no cross-store transaction to roll back. Surface, never swallow.
		warning := fmt.Sprintf("metadata sync failed: %v", err)
		s.logger.Warn("Vector written but metadata sync failed",
			zap.String("doc_id", doc.DocID), zap.Error(err))
		return NewCompletedWithWarning(doc.DocID, version, warning)
	}

	return NewCompleted(doc.DocID, version)
}

// SaveBatch runs documents through the pipeline one by one, continuing
// after individual failures. An oversized batch fails every item without
// touching any store.
func (s *Service) SaveBatch(ctx context.Context, docs []domain.Document) Report {
	report := Report{Total: len(docs), Outcomes: make([]Outcome, len(docs))}

	if len(docs) > s.cfg.MaxBatchSize {
		err := fmt.Errorf("batch size %d exceeds %d: %w",
			len(docs), s.cfg.MaxBatchSize, domain.ErrInvalidDocument)
		for i, doc := range docs {
			report.Outcomes[i] = NewFailed(doc.DocID, err)
		}
		report.Failed = len(docs)
		return report
	}

	for i, doc := range docs {
		outcome := s.SaveDocument(ctx, doc)
		report.Outcomes[i] = outcome
		if outcome.Succeeded() {
			report.Successful++
		} else {
			report.Failed++
		}
	}
	return report
}

// DeleteDocument removes the vector and the metadata record for docID.
func (s *Service) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.vectors.Delete(ctx, docID); err != nil {
		return fmt.Errorf("vector delete: %w", err)
	}
	if err := s.meta.Delete(ctx, docID); err != nil {
		return fmt.Errorf("metadata delete: %w", err)
	}
	return nil
}

// Status returns the metadata record for docID.
func (s *Service) Status(ctx context.Context, docID string) (domain.MetadataRecord, error) {
	return s.meta.Get(ctx, docID)
}

// embedWithRetry calls the embedder with exponential backoff and jitter on
// transient failures (rate limit, provider errors). Non-transient errors
// and context cancellation stop the loop immediately.
func (s *Service) embedWithRetry(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	backoff := s.cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		result, err := s.embed.Embed(ctx, text)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransient(err) {
			return domain.EmbeddingResult{}, err
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}

		wait := backoff
		wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		if wait > s.cfg.MaxBackoff {
			wait = s.cfg.MaxBackoff
		}
		s.logger.Debug("Retrying embedding after transient failure",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))

		if err := s.sleep(ctx, wait); err != nil {
			return domain.EmbeddingResult{}, err
		}

		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}

	return domain.EmbeddingResult{}, fmt.Errorf(
		"embedding failed after %d attempts: %w", s.cfg.MaxAttempts, lastErr)
}

// markFailed records failed status best-effort. A metadata store outage
// here must not mask the original pipeline failure.
func (s *Service) markFailed(ctx context.Context, docID string) {
	version := 0
	if prev, err := s.meta.Get(ctx, docID); err == nil {
		version = prev.Version
	}
	rec := domain.MetadataRecord{
		DocID:     docID,
		Status:    domain.StatusFailed,
		Version:   version,
		UpdatedAt: s.now(),
	}
	if err := s.meta.Put(ctx, rec); err != nil {
		s.logger.Warn("Failed to record failed status",
			zap.String("doc_id", docID), zap.Error(err))
	}
}

// nextVersion increments the stored version; a missing record starts at 1.
func (s *Service) nextVersion(ctx context.Context, docID string) int {
	prev, err := s.meta.Get(ctx, docID)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			s.logger.Warn("Failed to read previous version",
				zap.String("doc_id", docID), zap.Error(err))
		}
		return 1
	}
	return prev.Version + 1
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrEmbeddingProviderError)
}

func buildPayload(doc domain.Document) map[string]any {
	payload := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		payload[k] = v
	}
	payload["content"] = doc.Content
	if doc.Tag != "" {
		payload["tag"] = doc.Tag
	}
	return payload
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
