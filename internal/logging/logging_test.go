package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "querystore")).Info(context.Background(), "dataset written",
		Int("pixels", 12), Float("zref", 15000), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "dataset written" || rec["component"] != "querystore" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["pixels"] != float64(12) || rec["error"] != "boom" {
		t.Fatalf("fields missing from record: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info record leaked past warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn record was dropped")
	}
}

func TestWithRunLoggerIsStable(t *testing.T) {
	ctx, _ := WithRunLogger(context.Background(), Noop())
	id := RunIDFromContext(ctx)
	if id == "" {
		t.Fatalf("expected a run id on the context")
	}
	ctx2, _ := WithRunLogger(ctx, Noop())
	if got := RunIDFromContext(ctx2); got != id {
		t.Fatalf("run id changed from %q to %q", id, got)
	}
	if FromContext(ctx2) == nil {
		t.Fatalf("FromContext returned nil")
	}
	if _, ok := FromContext(context.Background()).(noopLogger); !ok {
		t.Fatalf("FromContext without a logger should be Noop")
	}
}
