// Package emit provides event emission and observability for graph simulation.
package emit

import "context"

// Emitter receives and processes observability events from simulation.
//
// Emitters enable pluggable observability backends:
// - Logging: stdout, files, syslog.
// - Distributed tracing: OpenTelemetry.
// - In-memory capture for tests and dashboards.
//
// Implementations should be:
// - Non-blocking: never slow the tick loop down.
// - Thread-safe: callers may emit from multiple goroutines.
// - Resilient: a failing backend must not crash the simulation.
type Emitter interface {
	// Emit sends one event to the backend.
	//
	// Emit must not panic. Backend errors are the emitter's problem:
	// log them, buffer the event, or drop it — never surface them into
	// the tick loop.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation.
	//
	// Events must be processed in order. Returns an error only on
	// catastrophic failures (e.g. misconfiguration); individual event
	// failures are logged and skipped.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until buffered events are delivered or ctx ends.
	//
	// Call before shutdown to avoid losing trailing events. Safe to
	// call multiple times.
	Flush(ctx context.Context) error
}
