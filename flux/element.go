package flux

import (
	"regexp"

	"github.com/dshills/fluxion-go/flux/eval"
)

// ElementKind tags the variant of a graph element.
type ElementKind string

// Node kinds plus the edge kind. Nodes are created through Graph.AddNode;
// edges through Graph.AddEdge.
const (
	KindPool      ElementKind = "pool"
	KindGate      ElementKind = "gate"
	KindConverter ElementKind = "converter"
	KindSwap      ElementKind = "swap"
	KindEdge      ElementKind = "edge"
)

// isNodeKind reports whether k names a node variant (anything but an edge).
func isNodeKind(k ElementKind) bool {
	switch k {
	case KindPool, KindGate, KindConverter, KindSwap:
		return true
	}
	return false
}

// Element is the common surface of every graph entity.
//
// Elements form a tagged union: Pool | Gate | Converter | Swap | Edge.
// Each variant owns its fields; shared operations dispatch by kind.
// The id is stable for the element's lifetime; the label is mutable
// through Graph.SetLabel and doubles as the element's expression variable.
type Element interface {
	// ID returns the element's stable, globally unique identifier.
	ID() string

	// Label returns the element's current unique label.
	Label() string

	// Kind returns the variant tag.
	Kind() ElementKind

	// setLabel updates the stored label. Validation and index maintenance
	// happen in Graph.SetLabel; elements never reject a label themselves.
	setLabel(label string)

	// cloneElement returns a deep copy sharing no mutable state.
	cloneElement() Element
}

// identRE is the lexical rule for labels and tokens. Labels appear as
// variables in user expressions, so the rule matches the identifier
// grammar of the expression sub-language.
var identRE = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// validIdent reports whether s is a lexically valid label or token.
func validIdent(s string) bool {
	return identRE.MatchString(s)
}

// numericExpr pairs a numeric expression's source with its compiled form.
// The source survives for serialization; fromJSON recompiles it.
type numericExpr struct {
	src string
	fn  eval.NumericFn
}

// booleanExpr pairs a boolean expression's source with its compiled form.
type booleanExpr struct {
	src string
	fn  eval.BooleanFn
}

// evalCondition evaluates a guard expression, treating an unset guard as true.
func evalCondition(c *booleanExpr, scope eval.Scope) (bool, error) {
	if c == nil {
		return true, nil
	}
	return c.fn.Eval(scope)
}

// compileNumeric builds a numericExpr, clearing on empty source.
func compileNumeric(ev eval.Evaluator, src string) (*numericExpr, error) {
	if src == "" {
		return nil, nil
	}
	fn, err := ev.CompileNumeric(src)
	if err != nil {
		return nil, err
	}
	return &numericExpr{src: src, fn: fn}, nil
}

// compileBoolean builds a booleanExpr, clearing on empty source.
func compileBoolean(ev eval.Evaluator, src string) (*booleanExpr, error) {
	if src == "" {
		return nil, nil
	}
	fn, err := ev.CompileBoolean(src)
	if err != nil {
		return nil, err
	}
	return &booleanExpr{src: src, fn: fn}, nil
}

// exprSource returns the source of a possibly-unset expression.
func exprSource(n *numericExpr) string {
	if n == nil {
		return ""
	}
	return n.src
}

func condSource(b *booleanExpr) string {
	if b == nil {
		return ""
	}
	return b.src
}

// copyFloatMap deep-copies a token/weight map.
func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// copyStringSet deep-copies an id set.
func copyStringSet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}
