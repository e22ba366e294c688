package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter implements Emitter by writing structured output to a writer.
//
// Supports two output modes:
// - Text mode (default): human-readable key=value lines.
// - JSON mode: one JSON object per line.
//
// Example text output:
//
//	[tick_end] graphID=factory tick=3 meta=map[packets:7]
//
// Example JSON output:
//
//	{"graphID":"factory","tick":3,"msg":"tick_end","meta":{"packets":7}}
//
// Usage:
//
//	// Text output to stdout.
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//
//	// JSON output to a file.
//	f, _ := os.Create("events.jsonl")
//	emitter := emit.NewLogEmitter(f, true)
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to the given writer. A nil
// writer defaults to stdout. jsonMode selects JSONL over text.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// jsonEvent is the wire shape of an event in JSON mode.
type jsonEvent struct {
	GraphID   string                 `json:"graphID"`
	Tick      int                    `json:"tick"`
	ElementID string                 `json:"elementID,omitempty"`
	Msg       string                 `json:"msg"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// Emit writes one event in the configured format. Write errors are
// swallowed; an emitter never disturbs the tick loop.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(event)
}

func (l *LogEmitter) write(event Event) {
	if l.jsonMode {
		data, err := json.Marshal(jsonEvent{
			GraphID:   event.GraphID,
			Tick:      event.Tick,
			ElementID: event.ElementID,
			Msg:       event.Msg,
			Meta:      event.Meta,
		})
		if err != nil {
			return
		}
		_, _ = fmt.Fprintln(l.writer, string(data))
		return
	}
	line := fmt.Sprintf("[%s] graphID=%s tick=%d", event.Msg, event.GraphID, event.Tick)
	if event.ElementID != "" {
		line += " elementID=" + event.ElementID
	}
	if len(event.Meta) > 0 {
		line += fmt.Sprintf(" meta=%v", event.Meta)
	}
	_, _ = fmt.Fprintln(l.writer, line)
}

// EmitBatch writes the events in order.
func (l *LogEmitter) EmitBatch(ctx context.Context, events []Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.write(event)
	}
	return nil
}

// Flush is a no-op: the writer receives every event synchronously.
func (l *LogEmitter) Flush(ctx context.Context) error {
	return ctx.Err()
}
