// Package dispatch runs the newline-framed stdio loop: read a line, execute
// the named tool (or every item of a batch), write exactly one response line.
package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/knowd-io/knowd/internal/domain"
	"github.com/knowd-io/knowd/internal/metrics"
	"github.com/knowd-io/knowd/internal/protocol"
	"github.com/knowd-io/knowd/internal/registry"
)

// errTimeout is the wire-contract text for an expired tool invocation.
const errTimeout = "Tool execution timed out"

// maxLineBytes bounds one input line. Batch payloads carry document content,
// so the ceiling is generous.
const maxLineBytes = 10 * 1024 * 1024

// Config holds dispatch policy.
type Config struct {
	// RequestTimeout bounds each tool invocation individually, batch items
	// included.
	RequestTimeout time.Duration
	// BatchWorkers is the worker pool width for batch requests.
	BatchWorkers int
}

// DefaultConfig returns the dispatch defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		BatchWorkers:   8,
	}
}

// Dispatcher reads requests from one stream and writes index-correlated
// responses to another. It never terminates the session on a bad request;
// only EOF, the exit sentinel, or context cancellation end the loop.
type Dispatcher struct {
	reg    *registry.Registry
	cfg    Config
	logger *zap.Logger

	// now is swappable so tests can pin elapsed-time measurements.
	now func() time.Time
}

// New creates a dispatcher over the given registry.
func New(reg *registry.Registry, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = DefaultConfig().BatchWorkers
	}
	return &Dispatcher{reg: reg, cfg: cfg, logger: logger, now: time.Now}
}

// Run processes lines from in until EOF, the exit sentinel, or ctx
// cancellation. Every non-empty input line produces exactly one output line.
func (d *Dispatcher) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := protocol.DecodeLine(line)
		if err != nil {
			// Malformed input is answered, never fatal.
			if werr := d.write(enc, protocol.Failed(protocol.UnknownRequestID, err.Error(), 0)); werr != nil {
				return werr
			}
			continue
		}

		switch {
		case msg.Exit:
			d.logger.Info("Exit sentinel received, closing session")
			ack := protocol.Success(protocol.GenerateID(), map[string]any{"message": "exiting"}, 0)
			return d.write(enc, ack)
		case msg.Batch != nil:
			responses := d.handleBatch(ctx, msg.Batch)
			if err := d.writeBatch(enc, responses); err != nil {
				return err
			}
		default:
			resp := d.handleSingle(ctx, msg.Single)
			if err := d.write(enc, resp); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("dispatch: read input: %w", err)
	}
	return nil
}

// handleSingle parses and executes one request value.
func (d *Dispatcher) handleSingle(ctx context.Context, v any) protocol.Response {
	start := d.now()

	req, err := protocol.ParseRequest(v)
	if err != nil {
		metrics.DispatchRequestsTotal.WithLabelValues("unknown", "failed").Inc()
		return protocol.Failed(req.ID, err.Error(), d.elapsedMS(start))
	}

	return d.execute(ctx, req, start)
}

// handleBatch executes batch items on a bounded worker pool. Responses land
// at the position of their originating item, whatever order execution
// finishes in.
func (d *Dispatcher) handleBatch(ctx context.Context, items []any) []protocol.Response {
	metrics.DispatchBatchSize.Observe(float64(len(items)))

	responses := make([]protocol.Response, len(items))

	workers := d.cfg.BatchWorkers
	if workers > len(items) {
		workers = len(items)
	}

	type job struct {
		index int
		value any
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				responses[j.index] = d.handleBatchItem(ctx, j.index, j.value)
			}
		}()
	}

	for i, v := range items {
		jobs <- job{index: i, value: v}
	}
	close(jobs)
	wg.Wait()

	return responses
}

func (d *Dispatcher) handleBatchItem(ctx context.Context, index int, v any) protocol.Response {
	start := d.now()

	if _, ok := v.(map[string]any); !ok {
		metrics.DispatchRequestsTotal.WithLabelValues("unknown", "failed").Inc()
		return protocol.Failed(protocol.GenerateID(), protocol.BatchItemError(index), d.elapsedMS(start))
	}
	return d.handleSingle(ctx, v)
}

// execute runs one parsed request against its tool with a per-request
// deadline. On expiry the runner goroutine is abandoned; its buffered result
// channel keeps it from leaking a blocked send.
func (d *Dispatcher) execute(ctx context.Context, req protocol.Request, start time.Time) protocol.Response {
	tool, ok := d.reg.Lookup(req.ToolName)
	if !ok {
		metrics.DispatchRequestsTotal.WithLabelValues(req.ToolName, "failed").Inc()
		return protocol.Failed(req.ID, fmt.Sprintf("Tool '%s' not found.", req.ToolName), d.elapsedMS(start))
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	type callResult struct {
		result map[string]any
		err    error
	}
	done := make(chan callResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Tool panicked",
					zap.String("tool", req.ToolName), zap.Any("panic", r))
				done <- callResult{err: fmt.Errorf("tool %s panicked: %v", req.ToolName, r)}
			}
		}()
		result, err := tool.Call(callCtx, req.Args, req.Kwargs)
		done <- callResult{result: result, err: err}
	}()

	var resp protocol.Response
	select {
	case <-callCtx.Done():
		d.logger.Warn("Tool execution timed out",
			zap.String("tool", req.ToolName),
			zap.String("request_id", req.ID),
			zap.Duration("timeout", d.cfg.RequestTimeout),
			zap.Error(domain.ErrExecutionTimeout))
		resp = protocol.Failed(req.ID, errTimeout, d.elapsedMS(start))
	case r := <-done:
		resp = d.buildResponse(req, r.result, r.err, start)
	}

	metrics.DispatchRequestsTotal.WithLabelValues(req.ToolName, string(resp.Status)).Inc()
	metrics.DispatchDuration.WithLabelValues(req.ToolName).Observe(d.now().Sub(start).Seconds())
	return resp
}

// buildResponse maps a tool's return to the wire envelope. A result map
// carrying status "failed" is an expected failure and becomes a failed
// response with the map's error detail.
func (d *Dispatcher) buildResponse(req protocol.Request, result map[string]any, err error, start time.Time) protocol.Response {
	if err != nil {
		return protocol.Failed(req.ID, err.Error(), d.elapsedMS(start))
	}

	if status, ok := result["status"].(string); ok && status == string(protocol.StatusFailed) {
		detail := "tool reported failure"
		if msg, ok := result["error"].(string); ok && msg != "" {
			detail = msg
		}
		return protocol.Failed(req.ID, detail, d.elapsedMS(start))
	}

	return protocol.Success(req.ID, result, d.elapsedMS(start))
}

func (d *Dispatcher) write(enc *json.Encoder, resp protocol.Response) error {
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("dispatch: write response: %w", err)
	}
	return nil
}

func (d *Dispatcher) writeBatch(enc *json.Encoder, responses []protocol.Response) error {
	if err := enc.Encode(responses); err != nil {
		return fmt.Errorf("dispatch: write batch response: %w", err)
	}
	return nil
}

func (d *Dispatcher) elapsedMS(start time.Time) float64 {
	return float64(d.now().Sub(start).Microseconds()) / 1000.0
}
