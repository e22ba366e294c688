package emit

import (
	"context"
	"sync"
)

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are organized per graph id for retrieval and filtering, which
// makes this the emitter of choice for tests and post-run analysis:
//
//	emitter := emit.NewBufferedEmitter()
//	g, _ := flux.New(eval.New(), flux.WithEmitter(emitter))
//	g.NextTick()
//	history := emitter.History(g.ID())
//
// All events stay in memory until cleared; long simulations with high
// event volume should prefer LogEmitter or OTelEmitter.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // graph id -> events in emission order
}

// HistoryFilter selects a subset of a graph's event history. Zero-valued
// fields don't filter; set fields combine with AND.
type HistoryFilter struct {
	// ElementID keeps only events scoped to one element.
	ElementID string

	// Msg keeps only events with this message, e.g. "tick_end".
	Msg string

	// MinTick / MaxTick bound the tick range, inclusive. Nil means
	// unbounded on that side.
	MinTick *int
	MaxTick *int
}

// NewBufferedEmitter creates an empty in-memory emitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit appends the event to its graph's history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.GraphID] = append(b.events[event.GraphID], event)
}

// EmitBatch appends the events in order.
func (b *BufferedEmitter) EmitBatch(ctx context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.events[event.GraphID] = append(b.events[event.GraphID], event)
	}
	return nil
}

// Flush is a no-op; the buffer is the destination.
func (b *BufferedEmitter) Flush(ctx context.Context) error {
	return ctx.Err()
}

// History returns a copy of the events recorded for one graph, in
// emission order.
func (b *BufferedEmitter) History(graphID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	events := b.events[graphID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// HistoryWithFilter returns the events for one graph matching the filter.
func (b *BufferedEmitter) HistoryWithFilter(graphID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for _, event := range b.events[graphID] {
		if filter.ElementID != "" && event.ElementID != filter.ElementID {
			continue
		}
		if filter.Msg != "" && event.Msg != filter.Msg {
			continue
		}
		if filter.MinTick != nil && event.Tick < *filter.MinTick {
			continue
		}
		if filter.MaxTick != nil && event.Tick > *filter.MaxTick {
			continue
		}
		out = append(out, event)
	}
	return out
}

// Clear drops the recorded history for one graph.
func (b *BufferedEmitter) Clear(graphID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, graphID)
}

// ClearAll drops every recorded event.
func (b *BufferedEmitter) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]Event)
}
