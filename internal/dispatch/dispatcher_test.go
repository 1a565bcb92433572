package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/knowd-io/knowd/internal/protocol"
	"github.com/knowd-io/knowd/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.MustRegister(registry.NewFunc("echo", "Echo text.",
		func(_ context.Context, args, kwargs map[string]any) (map[string]any, error) {
			text, _ := kwargs["text"].(string)
			if text == "" {
				text, _ = args["text"].(string)
			}
			return map[string]any{"status": "success", "echoed_text": text}, nil
		}))
	reg.MustRegister(registry.NewFunc("add_numbers", "Add two numbers.",
		func(_ context.Context, args, _ map[string]any) (map[string]any, error) {
			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)
			return map[string]any{"status": "success", "result": a + b}, nil
		}))
	reg.MustRegister(registry.NewFunc("block", "Block until cancelled.",
		func(ctx context.Context, _, _ map[string]any) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}))
	reg.MustRegister(registry.NewFunc("boom", "Panic.",
		func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
			panic("exploded")
		}))
	reg.MustRegister(registry.NewFunc("report_failure", "Report an in-band failure.",
		func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
			return map[string]any{"status": "failed", "error": "backend unavailable"}, nil
		}))
	reg.MustRegister(registry.NewFunc("hard_error", "Return a Go error.",
		func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
			return nil, errors.New("wiring broken")
		}))
	return reg
}

// runLines feeds input through a dispatcher and returns one raw JSON value
// per output line.
func runLines(t *testing.T, cfg Config, input string) []json.RawMessage {
	t.Helper()
	d := New(testRegistry(t), cfg, zap.NewNop())

	var out bytes.Buffer
	if err := d.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var lines []json.RawMessage
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		raw := make(json.RawMessage, len(scanner.Bytes()))
		copy(raw, scanner.Bytes())
		lines = append(lines, raw)
	}
	return lines
}

func decodeResponse(t *testing.T, raw json.RawMessage) protocol.Response {
	t.Helper()
	var resp protocol.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal response %s: %v", raw, err)
	}
	return resp
}

func decodeBatch(t *testing.T, raw json.RawMessage) []protocol.Response {
	t.Helper()
	var responses []protocol.Response
	if err := json.Unmarshal(raw, &responses); err != nil {
		t.Fatalf("unmarshal batch %s: %v", raw, err)
	}
	return responses
}

func TestRun_SingleRequest(t *testing.T) {
	lines := runLines(t, Config{},
		`{"id":"req-1","tool_name":"echo","kwargs":{"text":"hello"}}`+"\n")

	if len(lines) != 1 {
		t.Fatalf("got %d output lines, want 1", len(lines))
	}
	resp := decodeResponse(t, lines[0])
	if resp.ID != "req-1" || resp.Status != protocol.StatusSuccess {
		t.Fatalf("resp = %+v", resp)
	}
	result := resp.Result.(map[string]any)
	if result["echoed_text"] != "hello" {
		t.Errorf("result = %v", result)
	}
	if resp.Error != nil {
		t.Error("error must be null on success")
	}
}

func TestRun_BatchOrderPreserved(t *testing.T) {
	input := `[` +
		`{"id":"a","tool_name":"add_numbers","args":{"a":1,"b":2}},` +
		`{"id":"b","tool_name":"nope"},` +
		`{"id":"c","tool_name":"echo","kwargs":{"text":"hi"}}` +
		`]` + "\n"

	lines := runLines(t, Config{BatchWorkers: 3}, input)
	if len(lines) != 1 {
		t.Fatalf("got %d output lines, want 1", len(lines))
	}

	responses := decodeBatch(t, lines[0])
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}

	// Responses sit at the index of their originating item.
	if responses[0].ID != "a" || responses[0].Status != protocol.StatusSuccess {
		t.Errorf("responses[0] = %+v", responses[0])
	}
	if got := responses[0].Result.(map[string]any)["result"].(float64); got != 3 {
		t.Errorf("add_numbers result = %v, want 3", got)
	}
	if responses[1].ID != "b" || responses[1].Status != protocol.StatusFailed {
		t.Errorf("responses[1] = %+v", responses[1])
	}
	if *responses[1].Error != "Tool 'nope' not found." {
		t.Errorf("responses[1].Error = %q", *responses[1].Error)
	}
	if responses[2].ID != "c" || responses[2].Status != protocol.StatusSuccess {
		t.Errorf("responses[2] = %+v", responses[2])
	}
}

func TestRun_BatchItemNotObject(t *testing.T) {
	lines := runLines(t, Config{},
		`[{"id":"a","tool_name":"echo","kwargs":{"text":"x"}},"bogus"]`+"\n")

	responses := decodeBatch(t, lines[0])
	if len(responses) != 2 {
		t.Fatalf("got %d responses", len(responses))
	}
	if responses[0].Status != protocol.StatusSuccess {
		t.Errorf("responses[0] = %+v", responses[0])
	}
	if responses[1].Status != protocol.StatusFailed {
		t.Fatalf("responses[1] = %+v", responses[1])
	}
	if *responses[1].Error != "Invalid item at index 1 in batch request: expected object" {
		t.Errorf("error = %q", *responses[1].Error)
	}
	if responses[1].ID == "" {
		t.Error("failed item still needs a correlatable id")
	}
}

func TestRun_MalformedJSON(t *testing.T) {
	lines := runLines(t, Config{}, "{not json\n"+
		`{"id":"after","tool_name":"echo","kwargs":{"text":"still alive"}}`+"\n")

	if len(lines) != 2 {
		t.Fatalf("got %d output lines, want 2", len(lines))
	}

	bad := decodeResponse(t, lines[0])
	if bad.ID != protocol.UnknownRequestID || bad.Status != protocol.StatusFailed {
		t.Errorf("resp = %+v", bad)
	}
	if !strings.HasPrefix(*bad.Error, "Invalid JSON received: ") {
		t.Errorf("error = %q", *bad.Error)
	}

	// The session survives the malformed line.
	after := decodeResponse(t, lines[1])
	if after.ID != "after" || after.Status != protocol.StatusSuccess {
		t.Errorf("resp = %+v", after)
	}
}

func TestRun_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing tool_name", `{"id":"r1","args":{}}`, "Missing 'tool_name' in request"},
		{"args not dict", `{"id":"r2","tool_name":"echo","args":[1,2]}`, "'args' must be a dictionary"},
		{"kwargs not dict", `{"id":"r3","tool_name":"echo","kwargs":"x"}`, "'kwargs' must be a dictionary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := runLines(t, Config{}, tt.input+"\n")
			resp := decodeResponse(t, lines[0])
			if resp.Status != protocol.StatusFailed {
				t.Fatalf("resp = %+v", resp)
			}
			if *resp.Error != tt.want {
				t.Errorf("error = %q, want %q", *resp.Error, tt.want)
			}
		})
	}
}

func TestRun_ToolNotFound(t *testing.T) {
	lines := runLines(t, Config{}, `{"id":"r1","tool_name":"missing"}`+"\n")
	resp := decodeResponse(t, lines[0])
	if resp.Status != protocol.StatusFailed || *resp.Error != "Tool 'missing' not found." {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	lines := runLines(t, Config{RequestTimeout: 25 * time.Millisecond},
		`{"id":"slow","tool_name":"block"}`+"\n")

	resp := decodeResponse(t, lines[0])
	if resp.Status != protocol.StatusFailed {
		t.Fatalf("resp = %+v", resp)
	}
	if *resp.Error != "Tool execution timed out" {
		t.Errorf("error = %q", *resp.Error)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("dispatch blocked for %v on a timed-out tool", elapsed)
	}
}

func TestRun_ToolPanicIsContained(t *testing.T) {
	lines := runLines(t, Config{}, `{"id":"r1","tool_name":"boom"}`+"\n"+
		`{"id":"r2","tool_name":"echo","kwargs":{"text":"ok"}}`+"\n")

	boom := decodeResponse(t, lines[0])
	if boom.Status != protocol.StatusFailed || !strings.Contains(*boom.Error, "panicked") {
		t.Errorf("resp = %+v", boom)
	}

	after := decodeResponse(t, lines[1])
	if after.Status != protocol.StatusSuccess {
		t.Errorf("session did not survive the panic: %+v", after)
	}
}

func TestRun_InBandFailureMapped(t *testing.T) {
	lines := runLines(t, Config{}, `{"id":"r1","tool_name":"report_failure"}`+"\n")
	resp := decodeResponse(t, lines[0])
	if resp.Status != protocol.StatusFailed {
		t.Fatalf("resp = %+v", resp)
	}
	if *resp.Error != "backend unavailable" {
		t.Errorf("error = %q", *resp.Error)
	}
	if resp.Result != nil {
		t.Error("failed response must carry a null result")
	}
}

func TestRun_HardErrorMapped(t *testing.T) {
	lines := runLines(t, Config{}, `{"id":"r1","tool_name":"hard_error"}`+"\n")
	resp := decodeResponse(t, lines[0])
	if resp.Status != protocol.StatusFailed || *resp.Error != "wiring broken" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRun_ExitSentinel(t *testing.T) {
	for _, sentinel := range []string{"exit", `{"exit": true}`} {
		t.Run(sentinel, func(t *testing.T) {
			lines := runLines(t, Config{}, sentinel+"\n"+
				`{"id":"never","tool_name":"echo","kwargs":{"text":"x"}}`+"\n")

			// Final acknowledgement, then nothing: the second line is
			// never processed.
			if len(lines) != 1 {
				t.Fatalf("got %d output lines, want 1", len(lines))
			}
			ack := decodeResponse(t, lines[0])
			if ack.Status != protocol.StatusSuccess {
				t.Errorf("ack = %+v", ack)
			}
		})
	}
}

func TestRun_ExitFalseIsNotASentinel(t *testing.T) {
	lines := runLines(t, Config{}, `{"exit": false}`+"\n")
	resp := decodeResponse(t, lines[0])
	// Treated as a normal request, which fails validation.
	if resp.Status != protocol.StatusFailed || *resp.Error != "Missing 'tool_name' in request" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRun_MissingIDGenerated(t *testing.T) {
	lines := runLines(t, Config{}, `{"tool_name":"echo","kwargs":{"text":"x"}}`+"\n")
	resp := decodeResponse(t, lines[0])
	if resp.ID == "" || resp.ID == protocol.UnknownRequestID {
		t.Errorf("id = %q", resp.ID)
	}
	if resp.Status != protocol.StatusSuccess {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRun_EmptyLinesSkipped(t *testing.T) {
	lines := runLines(t, Config{}, "\n\n"+`{"id":"r1","tool_name":"echo","kwargs":{"text":"x"}}`+"\n\n")
	if len(lines) != 1 {
		t.Fatalf("got %d output lines, want 1", len(lines))
	}
}

func TestRun_ProcessingTimeAlwaysSet(t *testing.T) {
	d := New(testRegistry(t), Config{}, zap.NewNop())
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	d.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 7 * time.Millisecond)
	}

	var out bytes.Buffer
	input := `{"id":"r1","tool_name":"echo","kwargs":{"text":"x"}}` + "\n"
	if err := d.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Meta.ProcessingTimeMS <= 0 {
		t.Errorf("processing_time_ms = %v, want > 0", resp.Meta.ProcessingTimeMS)
	}
}

func TestRun_LargeBatchBoundedWorkers(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 40; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"tool_name":"add_numbers","args":{"a":1,"b":1}}`)
	}
	sb.WriteString("]\n")

	lines := runLines(t, Config{BatchWorkers: 4}, sb.String())
	responses := decodeBatch(t, lines[0])
	if len(responses) != 40 {
		t.Fatalf("got %d responses, want 40", len(responses))
	}
	for i, r := range responses {
		if r.Status != protocol.StatusSuccess {
			t.Fatalf("responses[%d] = %+v", i, r)
		}
	}
}
