package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingEmitter() (*OTelEmitter, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewOTelEmitter(provider.Tracer("fluxion-test")), recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOTelEmitterSpans(t *testing.T) {
	emitter, recorder := newRecordingEmitter()

	emitter.Emit(Event{
		GraphID: "g-1",
		Tick:    4,
		Msg:     "tick_end",
		Meta: map[string]interface{}{
			"packets":     3,
			"duration_ms": 0.25,
		},
	})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "tick_end" {
		t.Errorf("span name = %q, want tick_end", span.Name())
	}
	if v, ok := spanAttr(span, "graph_id"); !ok || v.AsString() != "g-1" {
		t.Errorf("graph_id attr = %v %v", v, ok)
	}
	if v, ok := spanAttr(span, "tick"); !ok || v.AsInt64() != 4 {
		t.Errorf("tick attr = %v %v", v, ok)
	}
	if v, ok := spanAttr(span, "packets"); !ok || v.AsInt64() != 3 {
		t.Errorf("packets attr = %v %v", v, ok)
	}
}

func TestOTelEmitterErrorStatus(t *testing.T) {
	emitter, recorder := newRecordingEmitter()

	emitter.Emit(Event{
		GraphID: "g-1",
		Msg:     "tick_error",
		Meta:    map[string]interface{}{"error": "boom"},
	})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Description != "boom" {
		t.Errorf("status = %+v, want description boom", spans[0].Status())
	}
}

func TestOTelEmitterBatch(t *testing.T) {
	emitter, recorder := newRecordingEmitter()

	events := []Event{
		{GraphID: "g-1", Tick: 1, Msg: "tick_start"},
		{GraphID: "g-1", Tick: 1, Msg: "tick_end"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	if got := len(recorder.Ended()); got != 2 {
		t.Errorf("spans = %d, want 2", got)
	}
}
