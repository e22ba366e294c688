package flux

import (
	"fmt"

	"github.com/dshills/fluxion-go/flux/eval"
)

// Pipe is one swap splice: a logically independent (in, out) edge pair
// routing a single exchange direction through the swap. A pipe is valid
// when both ends are attached.
type Pipe struct {
	In  string // inbound edge id, "" when unattached
	Out string // outbound edge id, "" when unattached
}

// Swap is a constant-product exchanger holding two token sides (A, B)
// with the invariant amountA * amountB == k fixed when the pair is
// configured. Feeding `amount` of one side's token in moves the other
// side's amount to k / newInput, and the delta comes out.
//
// A swap exposes an ordered list of pipes; each pipe splices one exchange
// direction into the surrounding graph. Pipe slot indices are contiguous
// from zero. An unconfigured swap exchanges nothing (Swap returns no
// result) and is reported as an error by CheckGraph.
type Swap struct {
	id    string
	label string

	tokenA  string
	tokenB  string
	amountA float64
	amountB float64
	k       float64

	configured bool

	condition *booleanExpr

	pipes []Pipe

	ev eval.Evaluator
}

func newSwap(id, label string, ev eval.Evaluator) *Swap {
	return &Swap{id: id, label: label, ev: ev}
}

// ID returns the swap's identifier.
func (s *Swap) ID() string { return s.id }

// Label returns the swap's label.
func (s *Swap) Label() string { return s.label }

// Kind returns KindSwap.
func (s *Swap) Kind() ElementKind { return KindSwap }

func (s *Swap) setLabel(label string) { s.label = label }

// TokenA returns the A-side token name.
func (s *Swap) TokenA() string { return s.tokenA }

// TokenB returns the B-side token name.
func (s *Swap) TokenB() string { return s.tokenB }

// AmountA returns the A-side pool amount.
func (s *Swap) AmountA() float64 { return s.amountA }

// AmountB returns the B-side pool amount.
func (s *Swap) AmountB() float64 { return s.amountB }

// K returns the constant product, zero before configuration.
func (s *Swap) K() float64 { return s.k }

// Configured reports whether the token pair has been set up.
func (s *Swap) Configured() bool { return s.configured }

// SetTokens configures the exchange pair. Both token names must be valid
// distinct identifiers and both amounts strictly positive. The constant
// product k = amountA * amountB is fixed here.
func (s *Swap) SetTokens(tokenA, tokenB string, amountA, amountB float64) error {
	if tokenA == "" || tokenB == "" {
		return ErrTokenNamesUndefined
	}
	if !validIdent(tokenA) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, tokenA)
	}
	if !validIdent(tokenB) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, tokenB)
	}
	if tokenA == tokenB {
		return fmt.Errorf("%w: %q", ErrDuplicateTokens, tokenA)
	}
	if amountA <= 0 || amountB <= 0 {
		return ErrNonPositiveTokenAmount
	}
	s.tokenA = tokenA
	s.tokenB = tokenB
	s.amountA = amountA
	s.amountB = amountB
	s.k = amountA * amountB
	s.configured = true
	return nil
}

// SetCondition installs the boolean guard on exchanging. Empty source
// clears the guard.
func (s *Swap) SetCondition(src string) error {
	expr, err := compileBoolean(s.ev, src)
	if err != nil {
		return err
	}
	s.condition = expr
	return nil
}

// Condition returns the guard source, or "" when unset.
func (s *Swap) Condition() string { return condSource(s.condition) }

// Pipes returns a copy of the pipe slots in index order.
func (s *Swap) Pipes() []Pipe {
	out := make([]Pipe, len(s.pipes))
	copy(out, s.pipes)
	return out
}

// getOrCreatePipe returns the pipe at index, creating the slot when index
// equals the current pipe count. Gaps are rejected so slot indices stay
// contiguous from zero.
func (s *Swap) getOrCreatePipe(index int) (*Pipe, error) {
	if index < 0 || index > len(s.pipes) {
		return nil, fmt.Errorf("%w: %d", ErrSwapIndexOutOfRange, index)
	}
	if index == len(s.pipes) {
		s.pipes = append(s.pipes, Pipe{})
	}
	return &s.pipes[index], nil
}

// pipeByIn returns the pipe whose inbound edge is edgeID, or nil.
func (s *Swap) pipeByIn(edgeID string) *Pipe {
	for i := range s.pipes {
		if s.pipes[i].In == edgeID {
			return &s.pipes[i]
		}
	}
	return nil
}

// pipeIndexOf returns the slot index of the pipe referencing edgeID on
// either side, or -1.
func (s *Swap) pipeIndexOf(edgeID string) int {
	for i := range s.pipes {
		if s.pipes[i].In == edgeID || s.pipes[i].Out == edgeID {
			return i
		}
	}
	return -1
}

// detachEdge clears edgeID from whichever pipe slot references it, then
// trims trailing slots left with neither end attached.
func (s *Swap) detachEdge(edgeID string) {
	for i := range s.pipes {
		if s.pipes[i].In == edgeID {
			s.pipes[i].In = ""
		}
		if s.pipes[i].Out == edgeID {
			s.pipes[i].Out = ""
		}
	}
	for len(s.pipes) > 0 {
		last := s.pipes[len(s.pipes)-1]
		if last.In != "" || last.Out != "" {
			break
		}
		s.pipes = s.pipes[:len(s.pipes)-1]
	}
}

// Swap exchanges amount of tokenIn for the counterpart token.
//
// Returns ok=false — producing nothing, never an error — when the swap is
// unconfigured, amount is zero, the condition fails, or tokenIn is neither
// side of the pair. A negative amount is a caller bug and errors.
//
// On success the inbound side's amount grows by amount, the other side
// moves to k / newInput, and the other side's delta is returned.
func (s *Swap) Swap(amount float64, tokenIn string, scope eval.Scope) (tokenOut string, amountOut float64, ok bool, err error) {
	if amount < 0 {
		return "", 0, false, fmt.Errorf("%w: %v", ErrNegativeSwapAmount, amount)
	}
	if !s.configured || amount == 0 {
		return "", 0, false, nil
	}
	pass, err := evalCondition(s.condition, scope)
	if err != nil {
		return "", 0, false, fmt.Errorf("swap %q condition: %w", s.label, err)
	}
	if !pass {
		return "", 0, false, nil
	}
	switch tokenIn {
	case s.tokenA:
		s.amountA += amount
		next := s.k / s.amountA
		out := s.amountB - next
		s.amountB = next
		return s.tokenB, out, true, nil
	case s.tokenB:
		s.amountB += amount
		next := s.k / s.amountB
		out := s.amountA - next
		s.amountA = next
		return s.tokenA, out, true, nil
	}
	return "", 0, false, nil
}

func (s *Swap) cloneElement() Element {
	cp := *s
	cp.pipes = make([]Pipe, len(s.pipes))
	copy(cp.pipes, s.pipes)
	return &cp
}
