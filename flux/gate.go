package flux

import (
	"fmt"
	"sort"

	"github.com/dshills/fluxion-go/flux/eval"
)

// Rand is the random source used for gate sampling. math/rand's *Rand
// satisfies it; tests inject a seeded source through Graph.SetRand (or
// WithRand at construction) so runs are reproducible.
type Rand interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
}

// Gate is a router: each tick it samples exactly one of its output edges,
// weighted by per-edge non-negative weights. Packets arriving on its single
// input are forwarded down the selected output, gated by the condition.
//
// A zero-weight output is never chosen. When every weight is zero (or the
// gate has no outputs), the gate selects nothing and forwards nothing that
// tick.
type Gate struct {
	id    string
	label string

	condition *booleanExpr

	input    string             // inbound edge id, "" when unconnected
	weights  map[string]float64 // output edge id -> weight
	selected string             // edge id sampled this tick, "" when none

	ev eval.Evaluator
}

func newGate(id, label string, ev eval.Evaluator) *Gate {
	return &Gate{
		id:      id,
		label:   label,
		weights: make(map[string]float64),
		ev:      ev,
	}
}

// ID returns the gate's identifier.
func (g *Gate) ID() string { return g.id }

// Label returns the gate's label.
func (g *Gate) Label() string { return g.label }

// Kind returns KindGate.
func (g *Gate) Kind() ElementKind { return KindGate }

func (g *Gate) setLabel(label string) { g.label = label }

// InputEdge returns the inbound edge id, or "" when unconnected.
func (g *Gate) InputEdge() string { return g.input }

// Weights returns a copy of the output-edge weight map.
func (g *Gate) Weights() map[string]float64 {
	return copyFloatMap(g.weights)
}

// SelectedOutput returns the edge id sampled by the most recent advance,
// or "" when no output was selected.
func (g *Gate) SelectedOutput() string { return g.selected }

// SetCondition installs the boolean guard consulted when a packet is
// forwarded through the gate. Empty source clears the guard.
func (g *Gate) SetCondition(src string) error {
	expr, err := compileBoolean(g.ev, src)
	if err != nil {
		return err
	}
	g.condition = expr
	return nil
}

// Condition returns the guard source, or "" when unset.
func (g *Gate) Condition() string { return condSource(g.condition) }

// setWeight updates one output weight. Callers go through
// Graph.SetGateOutputWeight, which validates edge membership first.
func (g *Gate) setWeight(edgeID string, weight float64) error {
	if weight < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeWeight, weight)
	}
	if _, ok := g.weights[edgeID]; !ok {
		return fmt.Errorf("%w: %s", ErrEdgeNotOnGate, edgeID)
	}
	g.weights[edgeID] = weight
	return nil
}

// outputIDs returns the gate's output edge ids in sorted order. Sampling
// and traversal iterate this slice so map ordering never leaks into
// simulation results.
func (g *Gate) outputIDs() []string {
	ids := make([]string, 0, len(g.weights))
	for id := range g.weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// advance samples the selected output for this tick.
func (g *Gate) advance(r Rand) {
	g.selected = ""
	ids := g.outputIDs()
	if len(ids) == 0 {
		return
	}
	weights := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = g.weights[id]
	}
	if i := weightedPick(r, weights); i >= 0 {
		g.selected = ids[i]
	}
}

// evaluateCondition reports whether the gate forwards this tick.
func (g *Gate) evaluateCondition(scope eval.Scope) (bool, error) {
	ok, err := evalCondition(g.condition, scope)
	if err != nil {
		return false, fmt.Errorf("gate %q condition: %w", g.label, err)
	}
	return ok, nil
}

func (g *Gate) cloneElement() Element {
	cp := *g
	cp.weights = copyFloatMap(g.weights)
	return &cp
}

// weightedPick selects an index from non-negative weights by prefix-sum
// sampling: draw u uniform in [0, total) and return the smallest i whose
// prefix sum exceeds u. Zero-weight entries are never chosen; ties fall
// through to the next non-zero weight. Returns -1 when nothing is
// selectable (no entries, or all weights zero).
func weightedPick(r Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if len(weights) == 0 || total <= 0 {
		return -1
	}
	u := r.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if acc > u {
			return i
		}
	}
	// Float drift can leave u at the extreme end; fall back to the last
	// non-zero weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}
