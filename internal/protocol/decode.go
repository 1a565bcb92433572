package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire-level error strings. These are part of the caller-facing contract and
// must not be reworded.
const (
	errMissingToolName = "Missing 'tool_name' in request"
	errArgsNotDict     = "'args' must be a dictionary"
	errKwargsNotDict   = "'kwargs' must be a dictionary"
)

// Message is one decoded input line: a single request value, a batch of
// request values, or the exit sentinel.
type Message struct {
	Single any
	Batch  []any
	Exit   bool
}

// exitSentinel is the plain-text session terminator.
const exitSentinel = "exit"

// DecodeLine parses one input line into a Message.
// A JSON parse failure is returned as an error whose text is embedded in the
// caller's failed response; it never aborts the session.
func DecodeLine(line []byte) (Message, error) {
	trimmed := bytes.TrimSpace(line)
	if string(trimmed) == exitSentinel {
		return Message{Exit: true}, nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return Message{}, fmt.Errorf("Invalid JSON received: %v", err)
	}

	switch tv := v.(type) {
	case map[string]any:
		if isExitObject(tv) {
			return Message{Exit: true}, nil
		}
		return Message{Single: tv}, nil
	case []any:
		return Message{Batch: tv}, nil
	default:
		return Message{}, fmt.Errorf("Invalid JSON received: expected object or array, got %T", v)
	}
}

func isExitObject(m map[string]any) bool {
	v, ok := m["exit"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ParseRequest validates one decoded request value and fills defaults.
// The returned error text is wire-contract prose; the id is always usable
// for correlation even when parsing fails.
func ParseRequest(v any) (Request, error) {
	req := Request{}

	m, ok := v.(map[string]any)
	if !ok {
		req.ID = GenerateID()
		return req, fmt.Errorf("expected object")
	}

	if id, ok := m["id"].(string); ok && id != "" {
		req.ID = id
	} else {
		req.ID = GenerateID()
	}

	name, ok := m["tool_name"].(string)
	if !ok || name == "" {
		return req, fmt.Errorf("%s", errMissingToolName)
	}
	req.ToolName = name

	args, err := mapField(m, "args", errArgsNotDict)
	if err != nil {
		return req, err
	}
	req.Args = args

	kwargs, err := mapField(m, "kwargs", errKwargsNotDict)
	if err != nil {
		return req, err
	}
	req.Kwargs = kwargs

	return req, nil
}

// mapField extracts an optional map-valued field, distinguishing "absent"
// from "present with the wrong shape".
func mapField(m map[string]any, key, errText string) (map[string]any, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return map[string]any{}, nil
	}
	mv, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s", errText)
	}
	return mv, nil
}

// BatchItemError is the failed-response text for a non-object batch element.
func BatchItemError(index int) string {
	return fmt.Sprintf("Invalid item at index %d in batch request: expected object", index)
}
