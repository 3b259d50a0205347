package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()
	rec.Observe(ctx, "register_entry", true, 20*time.Millisecond)
	rec.Observe(ctx, "register_entry", true, 30*time.Millisecond)
	rec.Observe(ctx, "register_entry", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.Results["register_entry"]["success"]; got != 2 {
		t.Fatalf("expected 2 successes, got %d", got)
	}
	if got := snap.Results["register_entry"]["error"]; got != 1 {
		t.Fatalf("expected 1 error, got %d", got)
	}
	if got := snap.DurationsMS["register_entry"]; got != 55 {
		t.Fatalf("expected 55ms total, got %f", got)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("empty operation must be ignored, got %+v", snap.Results)
	}
}

func TestExpvarRecorderGeneratesUniqueNames(t *testing.T) {
	a := NewExpvarMetricsRecorder("")
	b := NewExpvarMetricsRecorder("")
	if a.Name() == b.Name() {
		t.Fatalf("expected unique expvar names, both %s", a.Name())
	}
}

func TestPrometheusRecorderRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "register_withdrawal", true, 10*time.Millisecond)
	rec.Observe(ctx, "register_withdrawal", false, 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	if !names["tubetes_inventory_operation_duration_seconds"] {
		t.Fatalf("duration histogram not registered, got %v", names)
	}
	if !names["tubetes_inventory_operation_results_total"] {
		t.Fatalf("result counter not registered, got %v", names)
	}
}

func TestPrometheusRecorderDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestJSONTracerWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tracer.Span("register_entry", start, start.Add(15*time.Millisecond), nil)
	tracer.Span("register_withdrawal", start, start.Add(2*time.Millisecond), errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Status != "success" || entries[0].DurationMS != 15 {
		t.Fatalf("unexpected first span: %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Fatalf("unexpected second span: %+v", entries[1])
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], `"status":"error"`) {
		t.Fatalf("unexpected serialized span: %s", lines[1])
	}
}
