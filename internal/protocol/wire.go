// Package protocol defines the newline-framed request/response envelope
// spoken over stdio by the batch dispatcher.
package protocol

import (
	"github.com/google/uuid"
)

// Status is the outcome of one request.
type Status string

// Response status values.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// UnknownRequestID is echoed when a line cannot be parsed far enough to
// recover the caller's id.
const UnknownRequestID = "unknown-request-id"

// Request is one tool invocation received over the wire.
type Request struct {
	ID       string         `json:"id,omitempty"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty"`
}

// Meta carries per-response measurements.
type Meta struct {
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// Response correlates an outcome back to its Request by id.
// StatusSuccess implies Error is null; StatusFailed implies Result is null
// and Error is non-empty.
type Response struct {
	ID     string  `json:"id"`
	Status Status  `json:"status"`
	Result any     `json:"result"`
	Error  *string `json:"error"`
	Meta   Meta    `json:"meta"`
}

// Success builds a successful response.
func Success(id string, result any, elapsedMS float64) Response {
	return Response{
		ID:     id,
		Status: StatusSuccess,
		Result: result,
		Meta:   Meta{ProcessingTimeMS: elapsedMS},
	}
}

// Failed builds a failed response.
func Failed(id, errMsg string, elapsedMS float64) Response {
	return Response{
		ID:     id,
		Status: StatusFailed,
		Error:  &errMsg,
		Meta:   Meta{ProcessingTimeMS: elapsedMS},
	}
}

// GenerateID produces an id for requests that arrive without one.
// Callers must not depend on the format, only on correlation.
func GenerateID() string {
	return "req-" + uuid.NewString()
}
