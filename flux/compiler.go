package flux

import "sort"

// The per-tick compiler slices the live topology into independently
// executable work:
//
//	Phase A  advance pools and sample gates; non-selected gate outputs
//	         are disabled for the tick.
//	Phase B  cut at pool inputs: connected components of the active set
//	         become parallel groups.
//	Phase C  cut each converter's output edge away from the converter:
//	         components within a group become subgroups, each holding at
//	         most one converter.
//	Phase D  order subgroups so a converter's owner runs before anything
//	         pulling from it; a cycle marks the whole group Cyclic.
//
// Swaps never seed the search and participate once per pipe slot, so each
// valid (in, out) pipe behaves as its own single-in/single-out splice and
// one swap may appear in several groups.

// cnode is a vertex of the connectivity search. For swaps, pipe names the
// slot being traversed; it is -1 for every other element.
type cnode struct {
	id   string
	pipe int
}

// subgroup is the smallest unit of executor work.
type subgroup struct {
	memberIDs map[string]bool
	converter string   // the single converter inside, "" when none
	entries   []string // entry edge ids, sorted
}

// parallelGroup is one cut-at-pool-input component, further cut into
// subgroups. Order holds a topological execution order over subgroup
// indices, or is nil when the converters inside depend on each other
// cyclically.
type parallelGroup struct {
	subgroups []*subgroup
	order     []int
	cyclic    bool
}

// compiledGraph is one tick's execution plan.
type compiledGraph struct {
	groups   []*parallelGroup
	disabled map[string]bool
}

// subgroupCount returns the total number of subgroups across all groups.
func (cg *compiledGraph) subgroupCount() int {
	n := 0
	for _, pg := range cg.groups {
		n += len(pg.subgroups)
	}
	return n
}

// cyclicConverterSets returns, per cyclic parallel group, the set of
// converter ids inside it. Consumed by CheckGraph.
func (cg *compiledGraph) cyclicConverterSets() [][]string {
	var sets [][]string
	for _, pg := range cg.groups {
		if !pg.cyclic {
			continue
		}
		var ids []string
		for _, sg := range pg.subgroups {
			if sg.converter != "" {
				ids = append(ids, sg.converter)
			}
		}
		sort.Strings(ids)
		sets = append(sets, ids)
	}
	return sets
}

// compile runs phases A through D. In check mode no state changes: pools
// are not advanced and gates disable only their zero-weight outputs, so
// structural properties hold across every feasible selection.
func (g *Graph) compile(check bool) (*compiledGraph, error) {
	disabled := make(map[string]bool)

	// Phase A.
	for _, id := range g.sortedElementIDs() {
		switch el := g.elements[id].(type) {
		case *Pool:
			if !check {
				if err := el.advance(g.VariableScope()); err != nil {
					return nil, err
				}
			}
		case *Gate:
			if check {
				for edgeID, w := range el.weights {
					if w <= 0 {
						disabled[edgeID] = true
					}
				}
				continue
			}
			el.advance(g.rng)
			for edgeID := range el.weights {
				if edgeID != el.selected {
					disabled[edgeID] = true
				}
			}
		}
	}

	cg := &compiledGraph{disabled: disabled}
	g.currentDisabled = disabled

	// Phase B.
	assigned := make(map[cnode]bool)
	var components [][]cnode
	for _, id := range g.sortedElementIDs() {
		el := g.elements[id]
		if el.Kind() == KindSwap {
			continue
		}
		if el.Kind() == KindEdge && disabled[id] {
			continue
		}
		start := cnode{id: id, pipe: -1}
		if assigned[start] {
			continue
		}
		components = append(components, g.component(start, assigned, nil, false))
	}

	// Phases C and D per component.
	for _, comp := range components {
		pg := g.partitionComponent(comp)
		g.orderSubgroups(pg)
		cg.groups = append(cg.groups, pg)
	}
	return cg, nil
}

// component runs a DFS from start, collecting every reachable cnode.
// When within is non-nil, traversal is restricted to that set (phase C
// re-partitions inside one parallel group). phaseC switches on the
// converter-output cut.
func (g *Graph) component(start cnode, assigned map[cnode]bool, within map[cnode]bool, phaseC bool) []cnode {
	var comp []cnode
	stack := []cnode{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if assigned[n] {
			continue
		}
		if within != nil && !within[n] {
			continue
		}
		assigned[n] = true
		comp = append(comp, n)
		for _, nb := range g.neighbors(n, phaseC) {
			if !assigned[nb] {
				stack = append(stack, nb)
			}
		}
	}
	return comp
}

// edgeAlive reports whether id names a live edge not disabled this tick.
func (g *Graph) edgeAlive(id string, disabled map[string]bool) bool {
	if id == "" || disabled[id] {
		return false
	}
	_, ok := g.elements[id].(*Edge)
	return ok
}

// neighbors returns the adjacency of n under the tick's cut rules. The
// disabled-edge set of the tick being compiled sits on g.currentDisabled
// for the duration of compile; the graph is single-threaded so no other
// traversal can observe it.
func (g *Graph) neighbors(n cnode, phaseC bool) []cnode {
	disabled := g.currentDisabled
	var out []cnode
	switch el := g.elements[n.id].(type) {
	case *Pool:
		// The pool's input edge is the phase-B cut; only the output
		// connects.
		if g.edgeAlive(el.output, disabled) {
			out = append(out, cnode{id: el.output, pipe: -1})
		}
	case *Gate:
		if g.edgeAlive(el.input, disabled) {
			out = append(out, cnode{id: el.input, pipe: -1})
		}
		for _, edgeID := range el.outputIDs() {
			if g.edgeAlive(edgeID, disabled) {
				out = append(out, cnode{id: edgeID, pipe: -1})
			}
		}
	case *Converter:
		for _, edgeID := range sortedKeys(el.inputs) {
			if g.edgeAlive(edgeID, disabled) {
				out = append(out, cnode{id: edgeID, pipe: -1})
			}
		}
		if !phaseC && g.edgeAlive(el.output, disabled) {
			out = append(out, cnode{id: el.output, pipe: -1})
		}
	case *Swap:
		if n.pipe < 0 || n.pipe >= len(el.pipes) {
			break
		}
		pipe := el.pipes[n.pipe]
		if g.edgeAlive(pipe.In, disabled) {
			out = append(out, cnode{id: pipe.In, pipe: -1})
		}
		if g.edgeAlive(pipe.Out, disabled) {
			out = append(out, cnode{id: pipe.Out, pipe: -1})
		}
	case *Edge:
		if src, ok := g.elements[el.from]; ok {
			switch s := src.(type) {
			case *Swap:
				if idx := s.pipeIndexOf(el.id); idx >= 0 {
					out = append(out, cnode{id: el.from, pipe: idx})
				}
			case *Converter:
				// Phase C detaches a converter from its output edge.
				if !(phaseC && s.output == el.id) {
					out = append(out, cnode{id: el.from, pipe: -1})
				}
			default:
				out = append(out, cnode{id: el.from, pipe: -1})
			}
		}
		if dst, ok := g.elements[el.to]; ok {
			switch d := dst.(type) {
			case *Pool:
				// Cut: edges never connect into a pool.
			case *Swap:
				if idx := d.pipeIndexOf(el.id); idx >= 0 {
					out = append(out, cnode{id: el.to, pipe: idx})
				}
			default:
				out = append(out, cnode{id: el.to, pipe: -1})
			}
		}
	}
	return out
}

// partitionComponent re-runs the component search inside one parallel
// group with the phase-C cut, producing subgroups.
func (g *Graph) partitionComponent(comp []cnode) *parallelGroup {
	within := make(map[cnode]bool, len(comp))
	for _, n := range comp {
		within[n] = true
	}
	sorted := append([]cnode(nil), comp...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].id != sorted[j].id {
			return sorted[i].id < sorted[j].id
		}
		return sorted[i].pipe < sorted[j].pipe
	})

	pg := &parallelGroup{}
	assigned := make(map[cnode]bool, len(comp))
	for _, n := range sorted {
		if assigned[n] {
			continue
		}
		if el, ok := g.elements[n.id]; !ok || el.Kind() == KindSwap {
			continue
		}
		members := g.component(n, assigned, within, true)
		pg.subgroups = append(pg.subgroups, g.buildSubgroup(members))
	}
	return pg
}

// buildSubgroup derives a subgroup's converter and entry edges from its
// members. Entry edges are member edges sourced at a pool or a converter;
// the set may be empty for dead subgroups of self-cycling routers.
func (g *Graph) buildSubgroup(members []cnode) *subgroup {
	sg := &subgroup{
		memberIDs: make(map[string]bool, len(members)),
	}
	for _, n := range members {
		sg.memberIDs[n.id] = true
		el := g.elements[n.id]
		if el == nil {
			continue
		}
		switch e := el.(type) {
		case *Converter:
			sg.converter = e.id
		case *Edge:
			if src, ok := g.elements[e.from]; ok {
				switch src.Kind() {
				case KindPool, KindConverter:
					sg.entries = append(sg.entries, e.id)
				}
			}
		}
	}
	sort.Strings(sg.entries)
	return sg
}

// orderSubgroups builds the producer-before-consumer DAG over one group's
// subgroups and topologically orders it. For every entry edge sourced at
// a converter, the subgroup owning that converter must run first so its
// output is already buffered. A cycle marks the group Cyclic.
func (g *Graph) orderSubgroups(pg *parallelGroup) {
	owner := make(map[string]int)
	for i, sg := range pg.subgroups {
		if sg.converter != "" {
			owner[sg.converter] = i
		}
	}
	n := len(pg.subgroups)
	succ := make([][]int, n)
	indeg := make([]int, n)
	for i, sg := range pg.subgroups {
		for _, entryID := range sg.entries {
			e, ok := g.elements[entryID].(*Edge)
			if !ok {
				continue
			}
			conv, ok := g.elements[e.from].(*Converter)
			if !ok {
				continue
			}
			j, ok := owner[conv.id]
			if !ok || j == i {
				continue
			}
			succ[j] = append(succ[j], i)
			indeg[i]++
		}
	}
	var order []int
	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, j := range succ[i] {
			indeg[j]--
			if indeg[j] == 0 {
				ready = append(ready, j)
			}
		}
	}
	if len(order) < n {
		pg.cyclic = true
		pg.order = nil
		return
	}
	pg.order = order
}

// sortedKeys returns a set's keys in ascending order.
func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
