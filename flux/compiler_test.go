package flux

import (
	"math/rand"
	"testing"
)

func TestCompilerPartitioning(t *testing.T) {
	t.Run("pool chains cut at pool inputs", func(t *testing.T) {
		// p0 -> p1 -> p2: every edge is severed from its destination
		// pool, so each pool forms its own parallel group with its
		// output edge.
		g := newTestGraph(t)
		g.AddNode(KindPool, "p0", "a")
		g.AddNode(KindPool, "p1", "b")
		g.AddNode(KindPool, "p2", "c")
		g.AddEdge("e0", "p0", "p1", 1)
		g.AddEdge("e1", "p1", "p2", 1)

		cg, err := g.compile(true)
		if err != nil {
			t.Fatal(err)
		}
		if len(cg.groups) != 3 {
			t.Fatalf("groups = %d, want 3", len(cg.groups))
		}
		for _, pg := range cg.groups {
			if pg.cyclic {
				t.Error("pool chain must not be cyclic")
			}
			if len(pg.subgroups) != 1 {
				t.Errorf("subgroups = %d, want 1", len(pg.subgroups))
			}
		}
	})

	t.Run("converter keeps inputs, sheds output", func(t *testing.T) {
		// p0 -> c0 -> p1: the converter's input edge stays in its
		// subgroup; its output edge becomes a separate subgroup whose
		// entry it is.
		g := newTestGraph(t)
		g.AddNode(KindPool, "p0", "a")
		g.AddNode(KindConverter, "c0", "mill")
		g.AddNode(KindPool, "p1", "b")
		g.AddEdge("e0", "p0", "c0", 1)
		g.AddEdge("e1", "c0", "p1", 1)

		cg, err := g.compile(true)
		if err != nil {
			t.Fatal(err)
		}
		// p1 is alone in its own group; p0/e0/c0/e1 share one.
		var big *parallelGroup
		for _, pg := range cg.groups {
			if len(pg.subgroups) > 1 {
				big = pg
			}
		}
		if big == nil {
			t.Fatal("expected a group with two subgroups")
		}
		if big.cyclic {
			t.Fatal("group should be ordered")
		}
		var convSG, outSG *subgroup
		for _, sg := range big.subgroups {
			if sg.converter == "c0" {
				convSG = sg
			} else {
				outSG = sg
			}
		}
		if convSG == nil || outSG == nil {
			t.Fatalf("want converter and output subgroups, got %+v", big.subgroups)
		}
		if !convSG.memberIDs["e0"] || !convSG.memberIDs["p0"] {
			t.Error("converter subgroup should hold its input edge and feeding pool")
		}
		if !outSG.memberIDs["e1"] {
			t.Error("output edge should land in the downstream subgroup")
		}
		if len(outSG.entries) != 1 || outSG.entries[0] != "e1" {
			t.Errorf("output subgroup entries = %v, want [e1]", outSG.entries)
		}
		// Producer before consumer.
		first := big.subgroups[big.order[0]]
		if first.converter != "c0" {
			t.Error("converter-owning subgroup should run first")
		}
	})

	t.Run("mutual converters are cyclic", func(t *testing.T) {
		g := newTestGraph(t)
		g.AddNode(KindConverter, "c0", "left")
		g.AddNode(KindConverter, "c1", "right")
		g.AddEdge("e0", "c0", "c1", 1)
		g.AddEdge("e1", "c1", "c0", 1)

		cg, err := g.compile(true)
		if err != nil {
			t.Fatal(err)
		}
		if len(cg.groups) != 1 {
			t.Fatalf("groups = %d, want 1", len(cg.groups))
		}
		if !cg.groups[0].cyclic {
			t.Error("mutually feeding converters must mark the group cyclic")
		}
		sets := cg.cyclicConverterSets()
		if len(sets) != 1 || len(sets[0]) != 2 {
			t.Errorf("cyclic sets = %v, want one set of two", sets)
		}
	})

	t.Run("run mode disables non-selected gate outputs", func(t *testing.T) {
		g := newTestGraph(t)
		g.SetRand(rand.New(rand.NewSource(3)))
		p0, _ := g.AddNode(KindPool, "p0", "src")
		g.AddNode(KindGate, "g0", "router")
		g.AddNode(KindPool, "p1", "left")
		g.AddNode(KindPool, "p2", "right")
		p0.(*Pool).SetState(5)
		g.AddEdge("e0", "p0", "g0", 1)
		g.AddEdge("e1", "g0", "p1", 1)
		g.AddEdge("e2", "g0", "p2", 1)

		cg, err := g.compile(false)
		if err != nil {
			t.Fatal(err)
		}
		gate, _ := g.GetElement("g0")
		sel := gate.(*Gate).SelectedOutput()
		if sel == "" {
			t.Fatal("gate should select an output")
		}
		for _, other := range []string{"e1", "e2"} {
			if other == sel {
				if cg.disabled[other] {
					t.Errorf("selected edge %s must stay active", other)
				}
			} else if !cg.disabled[other] {
				t.Errorf("non-selected edge %s must be disabled", other)
			}
		}
	})

	t.Run("check mode disables only zero weights", func(t *testing.T) {
		g := newTestGraph(t)
		g.AddNode(KindGate, "g0", "router")
		g.AddNode(KindPool, "p1", "left")
		g.AddNode(KindPool, "p2", "right")
		g.AddEdge("e1", "g0", "p1", 1)
		g.AddEdge("e2", "g0", "p2", 1)
		g.SetGateOutputWeight("g0", "e2", 0)

		cg, err := g.compile(true)
		if err != nil {
			t.Fatal(err)
		}
		if cg.disabled["e1"] {
			t.Error("positive-weight output must stay active in check mode")
		}
		if !cg.disabled["e2"] {
			t.Error("zero-weight output must be disabled in check mode")
		}
		gate, _ := g.GetElement("g0")
		if gate.(*Gate).SelectedOutput() != "" {
			t.Error("check mode must not sample the gate")
		}
	})

	t.Run("check mode leaves pools alone", func(t *testing.T) {
		g := newTestGraph(t)
		p0, _ := g.AddNode(KindPool, "p0", "src")
		p0.(*Pool).SetState(4)
		p0.(*Pool).SetAction("x + 1")

		if _, err := g.compile(true); err != nil {
			t.Fatal(err)
		}
		if p0.(*Pool).State() != 4 {
			t.Errorf("check mode advanced the pool: %v", p0.(*Pool).State())
		}
	})

	t.Run("swap appears once per pipe", func(t *testing.T) {
		g := newTestGraph(t)
		g.AddNode(KindPool, "p0", "a")
		g.AddNode(KindPool, "p1", "b")
		el, _ := g.AddNode(KindSwap, "s0", "market")
		el.(*Swap).SetTokens("metal", "wood", 1, 1)
		g.AddEdge("e0", "p0", "s0", 1, WithSwapIndex(0))
		g.AddEdge("e1", "s0", "p1", 1, WithSwapIndex(0))
		g.AddEdge("e2", "p1", "s0", 1, WithSwapIndex(1))
		g.AddEdge("e3", "s0", "p0", 1, WithSwapIndex(1))

		cg, err := g.compile(true)
		if err != nil {
			t.Fatal(err)
		}
		// One group per pipe: each pipe splices its own component.
		if len(cg.groups) != 2 {
			t.Fatalf("groups = %d, want 2", len(cg.groups))
		}
		for _, pg := range cg.groups {
			if len(pg.subgroups) != 1 {
				t.Errorf("subgroups = %d, want 1", len(pg.subgroups))
			}
			sg := pg.subgroups[0]
			if !sg.memberIDs["s0"] {
				t.Error("each pipe component should include the swap")
			}
		}
	})
}

func TestCheckGraph(t *testing.T) {
	t.Run("clean graph has no error", func(t *testing.T) {
		g := newTestGraph(t)
		g.AddNode(KindPool, "p0", "a")
		g.AddNode(KindPool, "p1", "b")
		g.AddEdge("e0", "p0", "p1", 1)
		if res := g.CheckGraph(); res.Kind != CheckNoError {
			t.Errorf("kind = %s, want no-error: %s", res.Kind, res.Message)
		}
	})

	t.Run("unconfigured swap is an error", func(t *testing.T) {
		g := newTestGraph(t)
		g.AddNode(KindSwap, "s0", "market")
		res := g.CheckGraph()
		if res.Kind != CheckError {
			t.Errorf("kind = %s, want error", res.Kind)
		}
		if res.Message == "" {
			t.Error("error result should carry a message")
		}
	})

	t.Run("converter cycle is a warning", func(t *testing.T) {
		g := newTestGraph(t)
		g.AddNode(KindConverter, "c0", "left")
		g.AddNode(KindConverter, "c1", "right")
		g.AddEdge("e0", "c0", "c1", 1)
		g.AddEdge("e1", "c1", "c0", 1)
		res := g.CheckGraph()
		if res.Kind != CheckWarning {
			t.Fatalf("kind = %s, want warning", res.Kind)
		}
		if len(res.Cycles) != 1 {
			t.Fatalf("cycles = %v, want one set", res.Cycles)
		}
		set := res.Cycles[0]
		if len(set) != 2 || set[0] != "c0" || set[1] != "c1" {
			t.Errorf("cycle set = %v, want [c0 c1]", set)
		}
	})

	t.Run("cyclic warning does not block ticking", func(t *testing.T) {
		g := newTestGraph(t)
		g.AddNode(KindConverter, "c0", "left")
		g.AddNode(KindConverter, "c1", "right")
		g.AddEdge("e0", "c0", "c1", 1)
		g.AddEdge("e1", "c1", "c0", 1)
		if _, err := g.NextTick(); err != nil {
			t.Errorf("NextTick under warning: %v", err)
		}
	})

	t.Run("check leaves graph state untouched", func(t *testing.T) {
		g := newTestGraph(t)
		p0, _ := g.AddNode(KindPool, "p0", "src")
		p0.(*Pool).SetState(9)
		p0.(*Pool).SetAction("x * 2")
		g.CheckGraph()
		if p0.(*Pool).State() != 9 {
			t.Errorf("check mutated pool state: %v", p0.(*Pool).State())
		}
	})
}
