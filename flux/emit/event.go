package emit

// Event represents an observability event emitted during simulation.
//
// Events cover the tick lifecycle (tick_start, tick_end), structural
// checks (check_complete), and anything else a Graph wants to surface.
// They flow to an Emitter, which can log them, turn them into spans, or
// buffer them for inspection.
type Event struct {
	// GraphID identifies the graph that emitted this event.
	GraphID string

	// Tick is the tick number the event belongs to. Zero for events
	// emitted before the first tick.
	Tick int

	// ElementID identifies the element concerned, when the event is
	// element-scoped. Empty for graph-level events.
	ElementID string

	// Msg is a short machine-matchable description, e.g. "tick_start".
	Msg string

	// Meta carries additional structured data. Common keys:
	//   - "duration_ms": tick wall time
	//   - "packets": packets committed
	//   - "parallel_groups", "subgroups", "cyclic_groups": compiler shape
	//   - "kind", "message", "cycles": check outcome
	Meta map[string]interface{}
}
