package emit

import "context"

// NullEmitter implements Emitter by discarding all events.
//
// This is the default emitter: simulations that don't care about
// observability pay nothing for it.
type NullEmitter struct{}

// NewNullEmitter creates an emitter that discards everything. Safe for
// concurrent use, zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}

// EmitBatch discards the events.
func (n *NullEmitter) EmitBatch(ctx context.Context, events []Event) error {
	return nil
}

// Flush does nothing; there is never anything buffered.
func (n *NullEmitter) Flush(ctx context.Context) error {
	return nil
}
