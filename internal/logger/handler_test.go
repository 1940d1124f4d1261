package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
)

func TestContextHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	ctx := middleware.WithCorrelationID(context.Background(), "test-correlation-id")
	logger.InfoContext(ctx, "test message")

	var logMap map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logMap); err != nil {
		t.Fatalf("failed to unmarshal log: %v", err)
	}

	if logMap["correlation_id"] != "test-correlation-id" {
		t.Errorf("expected correlation_id 'test-correlation-id', got %v", logMap["correlation_id"])
	}
}

func TestContextHandler_WithAttrsKeepsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo).With("component", "indexer")

	ctx := middleware.WithCorrelationID(context.Background(), "abc")
	logger.InfoContext(ctx, "build started")

	var logMap map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logMap); err != nil {
		t.Fatalf("failed to unmarshal log: %v", err)
	}
	if logMap["component"] != "indexer" {
		t.Errorf("expected component attr, got %v", logMap["component"])
	}
	if logMap["correlation_id"] != "abc" {
		t.Errorf("expected correlation_id 'abc', got %v", logMap["correlation_id"])
	}
}
