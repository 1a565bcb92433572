package vectorize

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/knowd-io/knowd/internal/domain"
)

// mockEmbedder implements Embedder with a scripted function.
type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(call, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockVectorStore records upserts in memory.
type mockVectorStore struct {
	mu       sync.Mutex
	records  map[string]domain.VectorRecord
	upsertFn func(rec domain.VectorRecord) error
	deleteFn func(docID string) error
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{records: make(map[string]domain.VectorRecord)}
}

func (m *mockVectorStore) Upsert(_ context.Context, rec domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertFn != nil {
		if err := m.upsertFn(rec); err != nil {
			return err
		}
	}
	m.records[rec.DocID] = rec
	return nil
}

func (m *mockVectorStore) Delete(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteFn != nil {
		if err := m.deleteFn(docID); err != nil {
			return err
		}
	}
	delete(m.records, docID)
	return nil
}

func (m *mockVectorStore) get(docID string) (domain.VectorRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[docID]
	return rec, ok
}

// mockMetaStore records metadata in memory.
type mockMetaStore struct {
	mu      sync.Mutex
	records map[string]domain.MetadataRecord
	putFn   func(rec domain.MetadataRecord) error
	getFn   func(docID string) (domain.MetadataRecord, error)
}

func newMockMetaStore() *mockMetaStore {
	return &mockMetaStore{records: make(map[string]domain.MetadataRecord)}
}

func (m *mockMetaStore) Get(_ context.Context, docID string) (domain.MetadataRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getFn != nil {
		return m.getFn(docID)
	}
	rec, ok := m.records[docID]
	if !ok {
		return domain.MetadataRecord{}, domain.ErrDocumentNotFound
	}
	return rec, nil
}

func (m *mockMetaStore) Put(_ context.Context, rec domain.MetadataRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putFn != nil {
		if err := m.putFn(rec); err != nil {
			return err
		}
	}
	m.records[rec.DocID] = rec
	return nil
}

func (m *mockMetaStore) Delete(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, docID)
	return nil
}

func (m *mockMetaStore) get(docID string) (domain.MetadataRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[docID]
	return rec, ok
}

func newTestService(t *testing.T) (*Service, *mockEmbedder, *mockVectorStore, *mockMetaStore) {
	t.Helper()
	emb := &mockEmbedder{}
	vecs := newMockVectorStore()
	meta := newMockMetaStore()
	svc := New(emb, vecs, meta, Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		MaxBatchSize:   10,
	}, zap.NewNop())
	// Skip real backoff delays in tests.
	svc.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return svc, emb, vecs, meta
}

func testDoc(id string) domain.Document {
	return domain.Document{
		DocID:    id,
		Content:  "some content for " + id,
		Metadata: map[string]any{"source": "test"},
	}
}
