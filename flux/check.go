package flux

import (
	"fmt"

	"github.com/dshills/fluxion-go/flux/emit"
)

// CheckKind classifies a CheckGraph outcome.
type CheckKind string

// Check outcomes, from clean to blocking.
const (
	CheckNoError CheckKind = "no-error"
	CheckWarning CheckKind = "warning"
	CheckError   CheckKind = "error"
)

// CheckResult reports the structural health of the graph.
//
// Errors (malformed swaps) block simulation setup; warnings (converter
// dependency cycles) are informational — NextTick still runs, executing
// the affected groups under the cyclic strategy.
type CheckResult struct {
	Kind    CheckKind
	Message string

	// Cycles holds, per cyclic parallel group, the converter ids whose
	// dependencies form the cycle. Populated only for warnings.
	Cycles [][]string
}

// CheckGraph runs the compiler in non-mutating mode and reports
// structural problems: an error for any unconfigured swap, a warning
// listing the converter sets of every cyclic parallel group, or no-error.
// Pools are not advanced and gates are not sampled; only zero-weight gate
// outputs are treated as disabled, so the structure is judged across
// every feasible routing selection.
func (g *Graph) CheckGraph() CheckResult {
	result := g.check()
	g.emitter.Emit(emit.Event{
		GraphID: g.id,
		Tick:    g.tick,
		Msg:     "check_complete",
		Meta: map[string]interface{}{
			"kind":    string(result.Kind),
			"message": result.Message,
			"cycles":  len(result.Cycles),
		},
	})
	return result
}

func (g *Graph) check() CheckResult {
	for _, id := range g.sortedElementIDs() {
		if s, ok := g.elements[id].(*Swap); ok && !s.configured {
			return CheckResult{
				Kind:    CheckError,
				Message: fmt.Sprintf("swap %q is not configured: %v", s.label, ErrTokenNamesUndefined),
			}
		}
	}
	cg, err := g.compile(true)
	if err != nil {
		return CheckResult{Kind: CheckError, Message: err.Error()}
	}
	if cycles := cg.cyclicConverterSets(); len(cycles) > 0 {
		return CheckResult{
			Kind:    CheckWarning,
			Message: "converter dependencies form a cycle",
			Cycles:  cycles,
		}
	}
	return CheckResult{Kind: CheckNoError}
}
