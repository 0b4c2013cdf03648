package paper

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/execution"
	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "fills.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	fill := execution.Fill{Symbol: "XMRUSDT", Side: execution.Sell, Qty: 1, Price: 100}
	recorder.Record(fill)
	rec := signal.Record{Ts: time.Now().UTC(), Spread: 0.04, ZScore: math.NaN()}
	if err := recorder.Diagnostics().Record(context.Background(), rec); err != nil {
		t.Fatalf("diagnostics record: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("json decode: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["kind"] != "fill" || lines[1]["kind"] != "record" {
		t.Fatalf("unexpected kinds %v / %v", lines[0]["kind"], lines[1]["kind"])
	}
	decoded := lines[0]["fill"].(map[string]any)
	if decoded["symbol"] != fill.Symbol || decoded["side"] != string(fill.Side) {
		t.Fatalf("unexpected decoded fill %v", decoded)
	}
	if lines[1]["record"].(map[string]any)["zscore"] != nil {
		t.Fatalf("expected null zscore")
	}
}

func TestJSONLRecorderClosed(t *testing.T) {
	recorder, err := NewJSONLRecorder(filepath.Join(t.TempDir(), "f.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	_ = recorder.Close()
	if err := recorder.Diagnostics().Record(context.Background(), signal.Record{}); err == nil {
		t.Fatalf("expected error after close")
	}
}
