package domain

// VectorRecord is one stored embedding keyed by document id, one-to-one with
// a Document at any point in time (last-write-wins).
type VectorRecord struct {
	DocID     string
	Embedding []float32
	Payload   map[string]any
}

// Match is a single ranked hit from a similarity search.
type Match struct {
	DocID   string         `json:"doc_id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}
