package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core)).Named("sync")

	logger.Debug("speculative insert", "key", "companies/list")
	logger.Info("confirmed", "id", "real-1")
	logger.Warn("rolled back", "err", "boom")
	logger.Error("remote failed")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "sync" {
		t.Fatalf("expected named logger, got %q", entries[0].LoggerName)
	}
	if got := entries[1].ContextMap()["id"]; got != "real-1" {
		t.Fatalf("expected id field, got %v", got)
	}
	if entries[2].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[2].Level)
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Fatalf("expected NoopLogger for nil")
	}
	zl := NewZapLogger(nil)
	if OrNoop(zl) != Logger(zl) {
		t.Fatalf("expected passthrough")
	}
	zl.Info("discarded")
}

func TestPrometheusRecorderCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg, "test")
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "companies.insert", true, 5*time.Millisecond)
	rec.Observe(ctx, "companies.insert", false, time.Millisecond)
	rec.Observe(ctx, "companies.insert", true, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.Results().WithLabelValues("companies.insert", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.Results().WithLabelValues("companies.insert", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if _, err := NewPrometheusRecorder(reg, "test"); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestExpvarRecorderSnapshot(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if rec.Name() == "" {
		t.Fatalf("expected generated name")
	}
	rec.Observe(context.Background(), "op", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "op", false, time.Millisecond)
	rec.Observe(context.Background(), "", false, time.Millisecond)

	snap := rec.Snapshot()
	if snap.Results["op"]["success"] != 1 || snap.Results["op"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if snap.DurationsMS["op"] < 3 {
		t.Fatalf("expected accumulated duration, got %v", snap.DurationsMS["op"])
	}
	snap.Results["op"]["success"] = 99
	if rec.Snapshot().Results["op"]["success"] != 1 {
		t.Fatalf("snapshot must be a copy")
	}
}

func TestMultiRecorderFansOut(t *testing.T) {
	a := NewExpvarMetricsRecorder("")
	b := NewExpvarMetricsRecorder("")
	MultiRecorder{a, nil, b}.Observe(context.Background(), "op", true, time.Millisecond)
	if a.Snapshot().Results["op"]["success"] != 1 || b.Snapshot().Results["op"]["success"] != 1 {
		t.Fatalf("expected both recorders to observe")
	}
}

func TestJSONTracerEncodesSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "service.create")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "service.delete")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Fatalf("unexpected entry %+v", entries[1])
	}
	dec := json.NewDecoder(&buf)
	var first JSONTraceEntry
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Operation != "service.create" || first.Status != "success" {
		t.Fatalf("unexpected encoded entry %+v", first)
	}

	_, noop := NoopTracer{}.Start(context.Background(), "x")
	noop.End(nil)
	NoopMetrics{}.Observe(context.Background(), "x", true, 0)
}

func TestNewProductionLoggerHonoursVerbose(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewProductionLogger(&buf, false)
	quiet.Debug("hidden")
	quiet.Info("shown", zap.String("key", "companies/list"))
	_ = quiet.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "shown" || entry["key"] != "companies/list" {
		t.Fatalf("unexpected entry %v", entry)
	}

	buf.Reset()
	NewProductionLogger(&buf, true).Debug("visible")
	if !bytes.Contains(buf.Bytes(), []byte(`"visible"`)) {
		t.Fatalf("verbose logger dropped debug entry: %q", buf.String())
	}
}
