package flux

import (
	"sort"
	"testing"
)

func TestVariableScope(t *testing.T) {
	g := newTestGraph(t)
	p, _ := g.AddNode(KindPool, "p0", "tank")
	p.(*Pool).SetState(7)
	g.AddNode(KindPool, "p1", "sink")
	g.AddEdge("e0", "p0", "p1", 3, WithEdgeLabel("drain"))
	g.AddNode(KindGate, "g0", "router")

	t.Run("pools read as state, edges as rate", func(t *testing.T) {
		scope := g.VariableScope()
		if v, ok := scope.Get("tank"); !ok || v != 7 {
			t.Errorf("tank = %v %v, want 7 true", v, ok)
		}
		if v, ok := scope.Get("drain"); !ok || v != 3 {
			t.Errorf("drain = %v %v, want 3 true", v, ok)
		}
	})

	t.Run("gates are not observable", func(t *testing.T) {
		scope := g.VariableScope()
		if scope.Has("router") {
			t.Error("gate labels should not resolve")
		}
	})

	t.Run("writes cache and shadow", func(t *testing.T) {
		scope := g.VariableScope()
		scope.Set("tank", 99)
		if v, _ := scope.Get("tank"); v != 99 {
			t.Errorf("cached read = %v, want 99", v)
		}
		// The graph itself is untouched.
		if p.(*Pool).State() != 7 {
			t.Errorf("pool state = %v, want 7", p.(*Pool).State())
		}
		// A fresh scope sees the live value again.
		if v, _ := g.VariableScope().Get("tank"); v != 7 {
			t.Errorf("fresh read = %v, want 7", v)
		}
	})

	t.Run("writes to unknown names resolve locally", func(t *testing.T) {
		scope := g.VariableScope()
		if scope.Has("x") {
			t.Error("x should not resolve before Set")
		}
		scope.Set("x", 1)
		if !scope.Has("x") {
			t.Error("x should resolve after Set")
		}
	})

	t.Run("keys union cache and observables", func(t *testing.T) {
		scope := g.VariableScope()
		scope.Set("local", 1)
		keys := scope.Keys()
		if !sort.StringsAreSorted(keys) {
			t.Errorf("keys not sorted: %v", keys)
		}
		want := map[string]bool{"tank": true, "sink": true, "drain": true, "local": true}
		for name := range want {
			found := false
			for _, k := range keys {
				if k == name {
					found = true
				}
			}
			if !found {
				t.Errorf("keys missing %q: %v", name, keys)
			}
		}
		for _, k := range keys {
			if k == "router" {
				t.Error("keys should not include unobservable labels")
			}
		}
	})
}
