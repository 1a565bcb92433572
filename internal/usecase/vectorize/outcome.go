package vectorize

// Code is the terminal state of one vectorization attempt. The split between
// Completed and CompletedMetadataWarning is deliberate: a caller must never
// conflate "vector written" with "both stores consistent".
type Code string

// Outcome codes.
const (
	// Completed: vector written and metadata in sync.
	Completed Code = "completed"
	// CompletedMetadataWarning: vector written, metadata sync failed.
	// The vector write is not rolled back.
	CompletedMetadataWarning Code = "completed_metadata_warning"
	// Failed: no completed vector state for this invocation.
	Failed Code = "failed"
)

// Outcome is the tagged result of a single document vectorization.
type Outcome struct {
	docID   string
	code    Code
	version int
	warning string
	err     error
}

// NewCompleted creates a fully consistent outcome.
func NewCompleted(docID string, version int) Outcome {
	return Outcome{docID: docID, code: Completed, version: version}
}

// NewCompletedWithWarning creates a vector-written outcome whose metadata
// sync failed.
func NewCompletedWithWarning(docID string, version int, warning string) Outcome {
	return Outcome{docID: docID, code: CompletedMetadataWarning, version: version, warning: warning}
}

// NewFailed creates a failed outcome.
func NewFailed(docID string, err error) Outcome {
	return Outcome{docID: docID, code: Failed, err: err}
}

// DocID returns the document identifier.
func (o Outcome) DocID() string { return o.docID }

// Code returns the outcome code.
func (o Outcome) Code() Code { return o.code }

// Version returns the metadata version after a successful vector write.
func (o Outcome) Version() int { return o.version }

// Warning returns the metadata-sync warning, if any.
func (o Outcome) Warning() string { return o.warning }

// Err returns the failure cause, if any.
func (o Outcome) Err() error { return o.err }

// Succeeded reports whether the vector write went through.
func (o Outcome) Succeeded() bool { return o.code != Failed }

// Report aggregates per-document outcomes of a batch run.
type Report struct {
	Total      int
	Successful int
	Failed     int
	Outcomes   []Outcome
}
