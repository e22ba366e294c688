package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: event.Msg (e.g. "tick_start", "tick_end")
//   - Attributes: graph_id, tick, element_id (when set), and every Meta field
//   - Status: error when event.Meta["error"] is present
//
// Events are points in time, so spans end immediately on creation; the
// configured span processor batches them for export.
//
// Usage:
//
//	tracer := otel.Tracer("fluxion-go")
//	emitter := emit.NewOTelEmitter(tracer)
//	g, _ := flux.New(eval.New(), flux.WithEmitter(emitter))
//
// Wire a provider the usual way in application code:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter over the given tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and immediately ends one span for the event.
func (o *OTelEmitter) Emit(event Event) {
	o.span(context.Background(), event)
}

// EmitBatch creates spans for every event in order. The span processor
// batches the export; this call itself never blocks on the backend.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.span(ctx, event)
	}
	return nil
}

// Flush is a no-op at the emitter level: span export is owned by the
// tracer provider. Call the provider's ForceFlush before shutdown.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	return ctx.Err()
}

func (o *OTelEmitter) span(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("graph_id", event.GraphID),
		attribute.Int("tick", event.Tick),
	)
	if event.ElementID != "" {
		span.SetAttributes(attribute.String("element_id", event.ElementID))
	}
	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute(key, value))
	}
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// metaAttribute converts one Meta entry into a typed span attribute,
// falling back to fmt-formatting for unusual types.
func metaAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
