package reconcile

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "event-planner/reconcile"
	mutationSpanName    = "console.mutation"
	mutationEventName   = "console.mutation.resolved"
	mutationEventDomain = "console"
	observabilityEvent  = "observability.event"
)

func (s *Syncer) observe(ctx context.Context, entity, action, key string, seq int64, state State, elapsed time.Duration, err error) {
	_, span := otel.Tracer(instrumentationName).Start(context.WithoutCancel(ctx), mutationSpanName,
		trace.WithTimestamp(time.Now().Add(-elapsed)))
	defer span.End()

	sevText, sevNumber := severityForState(state)
	attrs := []attribute.KeyValue{
		attribute.String("console.entity", entity),
		attribute.String("console.action", action),
		attribute.String("console.key", key),
		attribute.String("console.outcome", state.String()),
		attribute.Int64("console.seq", seq),
		attribute.Float64("console.duration_ms", durationToMillis(elapsed)),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	span.SetAttributes(attrs...)

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", mutationEventName),
		attribute.String("event.domain", mutationEventDomain),
		attribute.String("severity_text", sevText),
		attribute.Int("severity_number", sevNumber),
	}, attrs...)
	span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))

	if state == StateRolledBack || state == StateRejected {
		span.SetStatus(codes.Error, state.String())
		if err != nil {
			span.RecordError(err)
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}

	logged := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		logged[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      mutationEventName,
		"event.domain":    mutationEventDomain,
		"severity_text":   sevText,
		"severity_number": sevNumber,
		"attributes":      logged,
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}

	entry := s.log.WithFields(fields)
	switch sevText {
	case "ERROR":
		entry.Error(observabilityEvent)
	case "WARN":
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

func severityForState(s State) (string, int) {
	switch s {
	case StateRolledBack:
		return "ERROR", 17
	case StateRejected, StateAbandoned:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
