package tools

import (
	"context"

	"github.com/knowd-io/knowd/internal/domain"
	"github.com/knowd-io/knowd/internal/usecase/search"
	"github.com/knowd-io/knowd/internal/usecase/vectorize"
)

// mockPipeline implements Pipeline with overridable function fields.
type mockPipeline struct {
	saveFn   func(doc domain.Document) vectorize.Outcome
	batchFn  func(docs []domain.Document) vectorize.Report
	deleteFn func(docID string) error
	statusFn func(docID string) (domain.MetadataRecord, error)
}

func (m *mockPipeline) SaveDocument(_ context.Context, doc domain.Document) vectorize.Outcome {
	if m.saveFn != nil {
		return m.saveFn(doc)
	}
	return vectorize.NewCompleted(doc.DocID, 1)
}

func (m *mockPipeline) SaveBatch(_ context.Context, docs []domain.Document) vectorize.Report {
	if m.batchFn != nil {
		return m.batchFn(docs)
	}
	report := vectorize.Report{Total: len(docs), Outcomes: make([]vectorize.Outcome, len(docs))}
	for i, doc := range docs {
		report.Outcomes[i] = vectorize.NewCompleted(doc.DocID, 1)
		report.Successful++
	}
	return report
}

func (m *mockPipeline) DeleteDocument(_ context.Context, docID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(docID)
	}
	return nil
}

func (m *mockPipeline) Status(_ context.Context, docID string) (domain.MetadataRecord, error) {
	if m.statusFn != nil {
		return m.statusFn(docID)
	}
	return domain.MetadataRecord{}, domain.ErrDocumentNotFound
}

// mockSearcher implements Searcher with an overridable function field.
type mockSearcher struct {
	searchFn func(req search.Request) ([]domain.Match, error)
}

func (m *mockSearcher) Search(_ context.Context, req search.Request) ([]domain.Match, error) {
	if m.searchFn != nil {
		return m.searchFn(req)
	}
	return nil, nil
}
