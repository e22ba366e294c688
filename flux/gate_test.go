package flux

import (
	"math/rand"
	"testing"
)

// seqRand replays a fixed sequence of draws, cycling at the end.
type seqRand struct {
	values []float64
	i      int
}

func (s *seqRand) Float64() float64 {
	v := s.values[s.i%len(s.values)]
	s.i++
	return v
}

func TestWeightedPick(t *testing.T) {
	t.Run("empty and all-zero select nothing", func(t *testing.T) {
		r := &seqRand{values: []float64{0.5}}
		if i := weightedPick(r, nil); i != -1 {
			t.Errorf("empty: %d, want -1", i)
		}
		if i := weightedPick(r, []float64{0, 0, 0}); i != -1 {
			t.Errorf("all-zero: %d, want -1", i)
		}
	})

	t.Run("draw lands by prefix sums", func(t *testing.T) {
		weights := []float64{1, 2, 1} // prefix sums 1, 3, 4
		cases := []struct {
			u    float64
			want int
		}{
			{0.0, 0},    // u = 0.0 < 1
			{0.24, 0},   // u = 0.96 < 1
			{0.25, 1},   // u = 1.0, first prefix > u is 3
			{0.74, 1},   // u = 2.96
			{0.75, 2},   // u = 3.0
			{0.9999, 2}, // u = 3.9996
		}
		for _, tc := range cases {
			r := &seqRand{values: []float64{tc.u}}
			if got := weightedPick(r, weights); got != tc.want {
				t.Errorf("u=%v: pick = %d, want %d", tc.u, got, tc.want)
			}
		}
	})

	t.Run("zero weights are never chosen", func(t *testing.T) {
		weights := []float64{0, 1, 0}
		for _, u := range []float64{0, 0.25, 0.5, 0.999} {
			r := &seqRand{values: []float64{u}}
			if got := weightedPick(r, weights); got != 1 {
				t.Errorf("u=%v: pick = %d, want 1", u, got)
			}
		}
	})

	t.Run("tie on a zero weight falls to the next non-zero", func(t *testing.T) {
		// prefix sums 1, 1, 2: u exactly 1 must skip index 1 (zero weight).
		weights := []float64{1, 0, 1}
		r := &seqRand{values: []float64{0.5}} // u = 1.0
		if got := weightedPick(r, weights); got != 2 {
			t.Errorf("pick = %d, want 2", got)
		}
	})
}

func TestGateAdvance(t *testing.T) {
	setup := func(t *testing.T) (*Graph, *Gate) {
		t.Helper()
		g := newTestGraph(t)
		el, err := g.AddNode(KindGate, "g0", "router")
		if err != nil {
			t.Fatal(err)
		}
		g.AddNode(KindPool, "p0", "a")
		g.AddNode(KindPool, "p1", "b")
		g.AddEdge("e0", "g0", "p0", 1)
		g.AddEdge("e1", "g0", "p1", 1)
		return g, el.(*Gate)
	}

	t.Run("samples one output", func(t *testing.T) {
		_, gate := setup(t)
		gate.advance(rand.New(rand.NewSource(1)))
		sel := gate.SelectedOutput()
		if sel != "e0" && sel != "e1" {
			t.Errorf("selected = %q, want an output edge", sel)
		}
	})

	t.Run("all zero weights select none", func(t *testing.T) {
		g, gate := setup(t)
		g.SetGateOutputWeight("g0", "e0", 0)
		g.SetGateOutputWeight("g0", "e1", 0)
		gate.advance(rand.New(rand.NewSource(1)))
		if gate.SelectedOutput() != "" {
			t.Errorf("selected = %q, want none", gate.SelectedOutput())
		}
	})

	t.Run("sole positive weight always wins", func(t *testing.T) {
		g, gate := setup(t)
		g.SetGateOutputWeight("g0", "e0", 0)
		g.SetGateOutputWeight("g0", "e1", 5)
		r := rand.New(rand.NewSource(99))
		for i := 0; i < 20; i++ {
			gate.advance(r)
			if gate.SelectedOutput() != "e1" {
				t.Fatalf("selected = %q, want e1", gate.SelectedOutput())
			}
		}
	})

	t.Run("no outputs selects none", func(t *testing.T) {
		g := newTestGraph(t)
		el, _ := g.AddNode(KindGate, "g0", "lonely")
		gate := el.(*Gate)
		gate.advance(rand.New(rand.NewSource(1)))
		if gate.SelectedOutput() != "" {
			t.Errorf("selected = %q, want none", gate.SelectedOutput())
		}
	})
}
