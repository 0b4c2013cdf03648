package paper

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

// JSONLRecorder appends fills and per-bar diagnostics as JSON lines for later analysis.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single fill to the underlying JSONL file.
func (r *JSONLRecorder) Record(fill execution.Fill) {
	_ = r.write(entry{Kind: "fill", Fill: &fill})
}

// Diagnostics adapts the recorder to the strategy's per-bar record sink.
func (r *JSONLRecorder) Diagnostics() DiagnosticsFunc {
	return func(_ context.Context, rec signal.Record) error {
		return r.write(entry{Kind: "record", Record: &rec})
	}
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

type entry struct {
	Kind   string          `json:"kind"`
	Fill   *execution.Fill `json:"fill,omitempty"`
	Record *signal.Record  `json:"record,omitempty"`
}

func (r *JSONLRecorder) write(e entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	return r.enc.Encode(e)
}

// DiagnosticsFunc lets a plain function act as a diagnostics recorder.
type DiagnosticsFunc func(ctx context.Context, rec signal.Record) error

// Record calls f.
func (f DiagnosticsFunc) Record(ctx context.Context, rec signal.Record) error { return f(ctx, rec) }
