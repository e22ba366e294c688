package eval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEvaluator is the default Evaluator, backed by expr-lang/expr.
//
// Each statement is compiled to an expr program at CompileNumeric /
// CompileBoolean time, so per-tick evaluation only builds an environment
// map from the scope and runs the precompiled programs.
//
// Example:
//
//	ev := eval.New()
//	fn, err := ev.CompileNumeric("y = x * 2; y + 1")
//	scope := eval.MapScope{"x": 3}
//	v, err := fn.Eval(scope) // v == 7, scope["y"] == 6
type ExprEvaluator struct{}

// New returns the default expression evaluator.
func New() *ExprEvaluator {
	return &ExprEvaluator{}
}

// assignRE matches `name = expr` where the `=` is an assignment, not the
// first half of `==`. The left side must be a full identifier.
var assignRE = regexp.MustCompile(`^\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*([^=].*)$`)

// statement is one compiled step of a program. Assign is empty for a bare
// expression statement.
type statement struct {
	assign  string
	program *vm.Program
}

// compiledExpr holds the ordered statements of one source program.
type compiledExpr struct {
	src   string
	stmts []statement
}

// splitStatements cuts source on newlines and semicolons, dropping blanks.
func splitStatements(src string) []string {
	fields := strings.FieldsFunc(src, func(r rune) bool {
		return r == '\n' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *ExprEvaluator) compile(src string) (*compiledExpr, error) {
	parts := splitStatements(src)
	if len(parts) == 0 {
		return nil, fmt.Errorf("compile %q: empty expression", src)
	}
	ce := &compiledExpr{src: src}
	for _, part := range parts {
		target := ""
		body := part
		if m := assignRE.FindStringSubmatch(part); m != nil {
			target = m[1]
			body = m[2]
		}
		prog, err := expr.Compile(body, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", part, err)
		}
		ce.stmts = append(ce.stmts, statement{assign: target, program: prog})
	}
	return ce, nil
}

// run executes the statements in order against scope and returns the value
// of the final statement.
func (ce *compiledExpr) run(scope Scope) (interface{}, error) {
	env := make(map[string]interface{})
	for _, k := range scope.Keys() {
		if v, ok := scope.Get(k); ok {
			env[k] = v
		}
	}
	var last interface{}
	for _, st := range ce.stmts {
		out, err := expr.Run(st.program, env)
		if err != nil {
			return nil, fmt.Errorf("eval %q: %w", ce.src, err)
		}
		if st.assign != "" {
			n, err := toNumber(out)
			if err != nil {
				return nil, fmt.Errorf("eval %q: assign %s: %w", ce.src, st.assign, err)
			}
			scope.Set(st.assign, n)
			env[st.assign] = n
			out = n
		}
		last = out
	}
	return last, nil
}

func toNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("result %v (%T) is not numeric", v, v)
	}
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	default:
		n, err := toNumber(v)
		if err != nil {
			return false, fmt.Errorf("result %v (%T) is not boolean", v, v)
		}
		return n != 0, nil
	}
}

type numericFn struct{ ce *compiledExpr }

func (f numericFn) Eval(scope Scope) (float64, error) {
	out, err := f.ce.run(scope)
	if err != nil {
		return 0, err
	}
	return toNumber(out)
}

type booleanFn struct{ ce *compiledExpr }

func (f booleanFn) Eval(scope Scope) (bool, error) {
	out, err := f.ce.run(scope)
	if err != nil {
		return false, err
	}
	return toBool(out)
}

// CompileNumeric compiles src into a function producing a number.
func (e *ExprEvaluator) CompileNumeric(src string) (NumericFn, error) {
	ce, err := e.compile(src)
	if err != nil {
		return nil, err
	}
	return numericFn{ce: ce}, nil
}

// CompileBoolean compiles src into a function producing a truth value.
// Numeric results coerce with the usual nonzero-is-true rule.
func (e *ExprEvaluator) CompileBoolean(src string) (BooleanFn, error) {
	ce, err := e.compile(src)
	if err != nil {
		return nil, err
	}
	return booleanFn{ce: ce}, nil
}
