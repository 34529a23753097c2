package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"userservice/pkg/tracing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	var entry map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", line, err)
	}
	return entry
}

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(InfoLevel, "production", &buf)

	log.WithFields(map[string]interface{}{"component": "test"}).
		Info("user created", map[string]interface{}{"id": 1})

	entry := decodeLine(t, &buf)
	if entry["message"] != "user created" {
		t.Errorf("Expected message 'user created', got %v", entry["message"])
	}
	if entry["component"] != "test" {
		t.Errorf("Expected component field, got %v", entry["component"])
	}
	if entry["level"] != "info" {
		t.Errorf("Expected level info, got %v", entry["level"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(WarnLevel, "production", &buf)

	log.Info("hidden", nil)
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}

	log.Error("shown", nil)
	if buf.Len() == 0 {
		t.Error("Expected error to be written at warn level")
	}
}

func TestLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(InfoLevel, "production", &buf)
	_ = parent.WithFields(map[string]interface{}{"child": true})

	parent.Info("parent", nil)

	entry := decodeLine(t, &buf)
	if _, ok := entry["child"]; ok {
		t.Error("Expected parent logger to be unaffected by WithFields")
	}
}

func TestLogger_ContextAddsTraceID(t *testing.T) {
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	ctx, span := tracing.StartSpan(context.Background(), "test")
	defer span.End()

	var buf bytes.Buffer
	New(InfoLevel, "production", &buf).InfoContext(ctx, "traced", nil)

	entry := decodeLine(t, &buf)
	if entry["trace_id"] != tracing.GetTraceID(ctx) {
		t.Errorf("Expected trace_id %s, got %v", tracing.GetTraceID(ctx), entry["trace_id"])
	}
}
