package llmcall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Recorder receives a Call for every generation attempt sequence.
// Implementations must be safe for concurrent use and must not block for long.
type Recorder interface {
	RecordCall(call *Call)
}

// Nop discards every call.
type Nop struct{}

// RecordCall implements Recorder.
func (Nop) RecordCall(*Call) {}

// LogRecorder emits each call as a structured log line.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a recorder on logger (slog.Default() if nil).
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// RecordCall implements Recorder.
func (r *LogRecorder) RecordCall(call *Call) {
	if call == nil {
		return
	}
	level := slog.LevelDebug
	if !call.Success {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "llm call",
		"label", call.Label,
		"stage", call.Stage,
		"provider", call.Provider,
		"model", call.Model,
		"cache_hit", call.CacheHit,
		"retries", call.RetryAttempts,
		"input_tokens", call.Usage.InputTokens,
		"output_tokens", call.Usage.OutputTokens,
		"cost_usd", call.CostUSD,
		"latency_ms", call.LatencyMs,
		"success", call.Success,
		"error", call.Error,
	)
}

// JSONLRecorder appends one JSON object per call to a writer.
type JSONLRecorder struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	logger *slog.Logger
}

// NewJSONLRecorder writes to w. Close does not close w.
func NewJSONLRecorder(w io.Writer) *JSONLRecorder {
	return &JSONLRecorder{enc: json.NewEncoder(w), logger: slog.Default()}
}

// OpenJSONLFile creates or appends to path.
func OpenJSONLFile(path string) (*JSONLRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	r := NewJSONLRecorder(f)
	r.closer = f
	return r, nil
}

// RecordCall implements Recorder. Write failures are logged, never returned.
func (r *JSONLRecorder) RecordCall(call *Call) {
	if call == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(call); err != nil {
		r.logger.Warn("failed to write call trace", "label", call.Label, "error", err)
	}
}

// Close closes the underlying file when the recorder owns it.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// MemoryRecorder keeps calls in memory.
type MemoryRecorder struct {
	mu    sync.Mutex
	calls []*Call
}

// RecordCall implements Recorder.
func (r *MemoryRecorder) RecordCall(call *Call) {
	if call == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

// Calls returns a snapshot of recorded calls.
func (r *MemoryRecorder) Calls() []*Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Multi fans out to several recorders.
type Multi []Recorder

// RecordCall implements Recorder.
func (m Multi) RecordCall(call *Call) {
	for _, r := range m {
		if r != nil {
			r.RecordCall(call)
		}
	}
}

// Verify interface
var (
	_ Recorder = Nop{}
	_ Recorder = (*LogRecorder)(nil)
	_ Recorder = (*JSONLRecorder)(nil)
	_ Recorder = (*MemoryRecorder)(nil)
	_ Recorder = Multi(nil)
)
