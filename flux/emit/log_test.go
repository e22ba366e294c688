package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		GraphID: "g-1",
		Tick:    3,
		Msg:     "tick_end",
		Meta:    map[string]interface{}{"packets": 2},
	})

	out := buf.String()
	for _, want := range []string{"[tick_end]", "graphID=g-1", "tick=3", "packets:2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{GraphID: "g-1", Tick: 1, ElementID: "p0", Msg: "tick_start"})

	var decoded jsonEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if decoded.GraphID != "g-1" || decoded.Tick != 1 || decoded.ElementID != "p0" || decoded.Msg != "tick_start" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestLogEmitterBatch(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	events := []Event{
		{GraphID: "g-1", Tick: 1, Msg: "tick_start"},
		{GraphID: "g-1", Tick: 1, Msg: "tick_end"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "tick_start") || !strings.Contains(lines[1], "tick_end") {
		t.Errorf("order lost: %v", lines)
	}
}

func TestLogEmitterBatchCancelled(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := emitter.EmitBatch(ctx, []Event{{Msg: "x"}}); err == nil {
		t.Error("cancelled context should surface")
	}
}

func TestLogEmitterNilWriterDefaultsToStdout(t *testing.T) {
	emitter := NewLogEmitter(nil, false)
	if emitter.writer == nil {
		t.Error("nil writer should default")
	}
}

func TestLogEmitterFlush(t *testing.T) {
	emitter := NewLogEmitter(&bytes.Buffer{}, false)
	if err := emitter.Flush(context.Background()); err != nil {
		t.Errorf("flush: %v", err)
	}
}
