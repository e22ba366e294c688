package flux

import (
	"fmt"

	"github.com/dshills/fluxion-go/flux/eval"
)

// Converter is a transformer: a multi-input recipe node. Inbound packets
// accumulate in a per-token buffer; one unit of the converter's output
// token is produced per complete recipe's worth of buffered input.
//
// A converter has any number of input edges and at most one output edge.
// The recipe (requiredInputPerUnit) maps input tokens to the positive
// amount consumed per produced unit. An empty recipe produces nothing.
type Converter struct {
	id    string
	label string
	token string

	condition *booleanExpr

	inputs map[string]struct{} // inbound edge ids
	output string              // outbound edge id, "" when unconnected

	required map[string]float64 // input token -> amount per produced unit
	buffer   map[string]float64 // input token -> accumulated amount

	ev eval.Evaluator
}

func newConverter(id, label string, ev eval.Evaluator) *Converter {
	return &Converter{
		id:       id,
		label:    label,
		token:    label + "_token",
		inputs:   make(map[string]struct{}),
		required: make(map[string]float64),
		buffer:   make(map[string]float64),
		ev:       ev,
	}
}

// ID returns the converter's identifier.
func (c *Converter) ID() string { return c.id }

// Label returns the converter's label.
func (c *Converter) Label() string { return c.label }

// Kind returns KindConverter.
func (c *Converter) Kind() ElementKind { return KindConverter }

func (c *Converter) setLabel(label string) { c.label = label }

// Token returns the output token this converter produces.
func (c *Converter) Token() string { return c.token }

// SetToken renames the output token. The name must be a valid identifier.
func (c *Converter) SetToken(token string) error {
	if !validIdent(token) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	c.token = token
	return nil
}

// RequiredInputPerUnit returns a copy of the recipe.
func (c *Converter) RequiredInputPerUnit() map[string]float64 {
	return copyFloatMap(c.required)
}

// Buffer returns a copy of the accumulated input buffer.
func (c *Converter) Buffer() map[string]float64 {
	return copyFloatMap(c.buffer)
}

// InputEdges returns the inbound edge ids (unordered).
func (c *Converter) InputEdges() []string {
	ids := make([]string, 0, len(c.inputs))
	for id := range c.inputs {
		ids = append(ids, id)
	}
	return ids
}

// OutputEdge returns the outbound edge id, or "" when unconnected.
func (c *Converter) OutputEdge() string { return c.output }

// SetCondition installs the boolean guard on conversion. Empty source
// clears the guard.
func (c *Converter) SetCondition(src string) error {
	expr, err := compileBoolean(c.ev, src)
	if err != nil {
		return err
	}
	c.condition = expr
	return nil
}

// Condition returns the guard source, or "" when unset.
func (c *Converter) Condition() string { return condSource(c.condition) }

// AddToBuffer accumulates delta of the given token. Delta must be
// non-negative.
func (c *Converter) AddToBuffer(token string, delta float64) error {
	if delta < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeAmount, delta)
	}
	c.buffer[token] += delta
	return nil
}

// setRequired updates one recipe entry. A positive amount sets the
// requirement; non-positive deletes it. Upstream-token validation happens
// in Graph.SetConverterRequiredInputPerUnit.
func (c *Converter) setRequired(token string, amount float64) {
	if amount <= 0 {
		delete(c.required, token)
		return
	}
	c.required[token] = amount
}

// MaximumConvertable returns how many output units the current buffer can
// produce: the minimum over required tokens of buffer[t] / required[t].
// Zero when the condition fails, the recipe is empty, or any required
// token is missing from the buffer.
func (c *Converter) MaximumConvertable(scope eval.Scope) (float64, error) {
	ok, err := evalCondition(c.condition, scope)
	if err != nil {
		return 0, fmt.Errorf("converter %q condition: %w", c.label, err)
	}
	if !ok || len(c.required) == 0 {
		return 0, nil
	}
	max := -1.0
	for token, need := range c.required {
		have, ok := c.buffer[token]
		if !ok || have <= 0 {
			return 0, nil
		}
		units := have / need
		if max < 0 || units < max {
			max = units
		}
	}
	if max < 0 {
		return 0, nil
	}
	return max, nil
}

// TakeFromState produces up to amount output units, consuming the buffer
// at the recipe's per-unit rates. Returns the amount actually produced,
// min(amount, MaximumConvertable).
func (c *Converter) TakeFromState(amount float64, scope eval.Scope) (float64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: %v", ErrNegativeAmount, amount)
	}
	max, err := c.MaximumConvertable(scope)
	if err != nil {
		return 0, err
	}
	produced := amount
	if produced > max {
		produced = max
	}
	if produced <= 0 {
		return 0, nil
	}
	for token, need := range c.required {
		c.buffer[token] -= need * produced
		if c.buffer[token] < 0 {
			c.buffer[token] = 0
		}
	}
	return produced, nil
}

func (c *Converter) cloneElement() Element {
	cp := *c
	cp.inputs = copyStringSet(c.inputs)
	cp.required = copyFloatMap(c.required)
	cp.buffer = copyFloatMap(c.buffer)
	return &cp
}
