package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "run-1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(filepath.Join(dir, "runs")); err != nil {
		t.Errorf("runs directory not created: %v", err)
	}
}

func TestLogWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-2")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if err := logger.Info(CategoryStream, "variant_received", "variant 3/30", map[string]any{"index": 2}); err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "runs", "run-2.jsonl"))
	if err != nil {
		t.Fatalf("reading run log: %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if event.Category != CategoryStream {
		t.Errorf("category = %q, want %q", event.Category, CategoryStream)
	}
	if event.RunID != "run-2" {
		t.Errorf("run_id = %q, want run-2", event.RunID)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should be stamped automatically")
	}
}

func TestErrorsGoToErrorFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-3")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Error(CategoryLink, "poll_failed", "status poll failed", nil)
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "errors.jsonl"))
	if err != nil {
		t.Fatalf("reading error log: %v", err)
	}
	if len(data) == 0 {
		t.Error("error log should not be empty")
	}
}

func TestMinLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-4")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	// Default min level is info; debug should be dropped
	logger.Debug(CategoryNetwork, "request", "GET /meesho/status", nil)
	logger.Close()

	data, _ := os.ReadFile(filepath.Join(dir, "runs", "run-4.jsonl"))
	if len(data) != 0 {
		t.Errorf("debug event should have been filtered, got %q", data)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	if err := logger.Info(CategoryCLI, "noop", "should not panic", nil); err != nil {
		t.Errorf("nop logger returned error: %v", err)
	}
}
