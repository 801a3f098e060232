package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestObserveProducesSpanAndLogEvent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})
	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	s := &Syncer{log: logger}
	s.observe(context.Background(), "task", "move", "t1", 7, StateConfirmed, 12*time.Millisecond, nil)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Message != observabilityEvent {
		t.Fatalf("expected observability event, got %#v", entry)
	}
	if entry.Data["event.name"] != mutationEventName || entry.Data["severity_text"] != "INFO" {
		t.Fatalf("unexpected entry fields: %#v", entry.Data)
	}
	attrs, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrs["console.outcome"] != "confirmed" || attrs["console.key"] != "t1" {
		t.Fatalf("unexpected attributes: %#v", attrs)
	}
	if traceID, ok := entry.Data["trace_id"].(string); !ok || traceID == "" {
		t.Fatalf("expected trace_id, got %#v", entry.Data["trace_id"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != mutationSpanName || span.Status.Code != codes.Ok {
		t.Fatalf("unexpected span: %s %v", span.Name, span.Status.Code)
	}
	spanAttrs := attributesToMap(span.Attributes)
	if spanAttrs["console.seq"] != int64(7) {
		t.Fatalf("unexpected seq attribute: %#v", spanAttrs["console.seq"])
	}
}

func TestObserveRollbackMarksSpanError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	s := &Syncer{log: logger}
	boom := errors.New("server said no")
	s.observe(context.Background(), "expense", "delete", "x1", 1, StateRolledBack, time.Millisecond, boom)
	_ = tp.ForceFlush(context.Background())

	if entry := hook.LastEntry(); entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error-level entry, got %#v", entry)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Status.Code != codes.Error {
		t.Fatalf("expected one errored span, got %#v", spans)
	}
	var found bool
	for _, ev := range spans[0].Events {
		if ev.Name == observabilityEvent {
			found = true
			if attributesToMap(ev.Attributes)["error.message"] != boom.Error() {
				t.Fatalf("missing error.message on span event")
			}
		}
	}
	if !found {
		t.Fatal("expected observability.event on span")
	}
}

func TestSeverityForState(t *testing.T) {
	tests := []struct {
		state      State
		wantText   string
		wantNumber int
	}{
		{StateConfirmed, "INFO", 9},
		{StateRejected, "WARN", 13},
		{StateAbandoned, "WARN", 13},
		{StateRolledBack, "ERROR", 17},
	}
	for _, tt := range tests {
		text, number := severityForState(tt.state)
		if text != tt.wantText || number != tt.wantNumber {
			t.Fatalf("severityForState(%s) = %s/%d, want %s/%d", tt.state, text, number, tt.wantText, tt.wantNumber)
		}
	}
}

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	}
	return tp, exporter, cleanup
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}
