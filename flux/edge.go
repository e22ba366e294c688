package flux

import (
	"github.com/dshills/fluxion-go/flux/eval"
)

// Edge is a directed, rate-limited connection between two nodes.
//
// Rate bounds how much quantity the edge carries per tick; a negative
// rate means unlimited ("take everything available"). A rate of zero is
// a live edge that carries nothing — its condition still evaluates and
// its visitation still counts during traversal.
//
// When either endpoint is a swap, SwapIndex names the pipe slot this edge
// attaches to; it is -1 otherwise.
type Edge struct {
	id    string
	label string

	from string
	to   string

	rate      float64
	swapIndex int

	condition *booleanExpr

	ev eval.Evaluator
}

func newEdge(id, label, from, to string, rate float64, swapIndex int, ev eval.Evaluator) *Edge {
	return &Edge{
		id:        id,
		label:     label,
		from:      from,
		to:        to,
		rate:      rate,
		swapIndex: swapIndex,
		ev:        ev,
	}
}

// ID returns the edge's identifier.
func (e *Edge) ID() string { return e.id }

// Label returns the edge's label.
func (e *Edge) Label() string { return e.label }

// Kind returns KindEdge.
func (e *Edge) Kind() ElementKind { return KindEdge }

func (e *Edge) setLabel(label string) { e.label = label }

// From returns the source element id.
func (e *Edge) From() string { return e.from }

// To returns the destination element id.
func (e *Edge) To() string { return e.to }

// Rate returns the per-tick carrying limit; negative means unlimited.
func (e *Edge) Rate() float64 { return e.rate }

// Unlimited reports whether the edge carries without a rate bound.
func (e *Edge) Unlimited() bool { return e.rate < 0 }

// SetRate updates the per-tick carrying limit. Negative means unlimited.
func (e *Edge) SetRate(rate float64) { e.rate = rate }

// SwapIndex returns the pipe slot this edge attaches to on a swap
// endpoint, or -1 when neither endpoint is a swap.
func (e *Edge) SwapIndex() int { return e.swapIndex }

// SetCondition installs the boolean guard on carrying. Empty source
// clears the guard.
func (e *Edge) SetCondition(src string) error {
	expr, err := compileBoolean(e.ev, src)
	if err != nil {
		return err
	}
	e.condition = expr
	return nil
}

// Condition returns the guard source, or "" when unset.
func (e *Edge) Condition() string { return condSource(e.condition) }

// evaluateCondition reports whether the edge carries this tick.
func (e *Edge) evaluateCondition(scope eval.Scope) (bool, error) {
	return evalCondition(e.condition, scope)
}

func (e *Edge) cloneElement() Element {
	cp := *e
	return &cp
}
