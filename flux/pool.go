package flux

import (
	"fmt"

	"github.com/dshills/fluxion-go/flux/eval"
)

// Pool is a reservoir: a container holding a non-negative quantity of its
// token, optionally bounded by a capacity.
//
// A pool has at most one input edge and at most one output edge. Each tick
// the pool advances first: if its condition holds, its action expression is
// evaluated with the variable "x" bound to the current state, and the result
// becomes the next state (re-clamped into [0, capacity]).
type Pool struct {
	id       string
	label    string
	token    string
	state    float64
	capacity float64 // negative means unbounded

	action    *numericExpr
	condition *booleanExpr

	input  string // inbound edge id, "" when unconnected
	output string // outbound edge id, "" when unconnected

	ev eval.Evaluator
}

func newPool(id, label string, ev eval.Evaluator) *Pool {
	return &Pool{
		id:       id,
		label:    label,
		token:    label + "_token",
		capacity: -1,
		ev:       ev,
	}
}

// ID returns the pool's identifier.
func (p *Pool) ID() string { return p.id }

// Label returns the pool's label.
func (p *Pool) Label() string { return p.label }

// Kind returns KindPool.
func (p *Pool) Kind() ElementKind { return KindPool }

func (p *Pool) setLabel(label string) { p.label = label }

// Token returns the kind of quantity this pool produces.
func (p *Pool) Token() string { return p.token }

// SetToken renames the pool's token. The name must be a valid identifier.
func (p *Pool) SetToken(token string) error {
	if !validIdent(token) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	p.token = token
	return nil
}

// State returns the current quantity held.
func (p *Pool) State() float64 { return p.state }

// Capacity returns the pool's capacity; negative means unbounded.
func (p *Pool) Capacity() float64 { return p.capacity }

// Unbounded reports whether the pool has no upper bound.
func (p *Pool) Unbounded() bool { return p.capacity < 0 }

// clamp bounds x into the pool's legal state range.
func (p *Pool) clamp(x float64) float64 {
	if x < 0 {
		return 0
	}
	if !p.Unbounded() && x > p.capacity {
		return p.capacity
	}
	return x
}

// SetState sets the state, clamped into [0, capacity].
func (p *Pool) SetState(x float64) {
	p.state = p.clamp(x)
}

// SetCapacity sets the capacity. A negative value means unbounded.
// If the new capacity is below the current state, the state truncates.
func (p *Pool) SetCapacity(c float64) {
	p.capacity = c
	p.state = p.clamp(p.state)
}

// AddToPool adds delta to the state and returns the amount actually added
// after capacity clamping. Delta must be non-negative.
func (p *Pool) AddToPool(delta float64) (float64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("%w: %v", ErrNegativeAmount, delta)
	}
	before := p.state
	p.state = p.clamp(p.state + delta)
	return p.state - before, nil
}

// TakeFromPool removes up to delta from the state and returns the amount
// actually taken. Delta must be non-negative.
func (p *Pool) TakeFromPool(delta float64) (float64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("%w: %v", ErrNegativeAmount, delta)
	}
	taken := delta
	if taken > p.state {
		taken = p.state
	}
	p.state -= taken
	return taken, nil
}

// SetAction installs the numeric expression evaluated each tick to produce
// the next state. Empty source clears the action.
func (p *Pool) SetAction(src string) error {
	expr, err := compileNumeric(p.ev, src)
	if err != nil {
		return err
	}
	p.action = expr
	return nil
}

// Action returns the action source, or "" when unset.
func (p *Pool) Action() string { return exprSource(p.action) }

// SetCondition installs the boolean guard on the action. Empty source
// clears the guard (the action then always runs).
func (p *Pool) SetCondition(src string) error {
	expr, err := compileBoolean(p.ev, src)
	if err != nil {
		return err
	}
	p.condition = expr
	return nil
}

// Condition returns the guard source, or "" when unset.
func (p *Pool) Condition() string { return condSource(p.condition) }

// InputEdge returns the inbound edge id, or "" when unconnected.
func (p *Pool) InputEdge() string { return p.input }

// OutputEdge returns the outbound edge id, or "" when unconnected.
func (p *Pool) OutputEdge() string { return p.output }

// advance runs the pool's per-tick update. The scope is pre-bound with
// "x" = current state; if the condition holds, the action result becomes
// the next state, re-clamped.
func (p *Pool) advance(scope eval.Scope) error {
	if p.action == nil {
		return nil
	}
	scope.Set("x", p.state)
	ok, err := evalCondition(p.condition, scope)
	if err != nil {
		return fmt.Errorf("pool %q condition: %w", p.label, err)
	}
	if !ok {
		return nil
	}
	next, err := p.action.fn.Eval(scope)
	if err != nil {
		return fmt.Errorf("pool %q action: %w", p.label, err)
	}
	p.state = p.clamp(next)
	return nil
}

func (p *Pool) cloneElement() Element {
	cp := *p
	return &cp
}
