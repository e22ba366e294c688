package flux

import (
	"fmt"
	"sort"
	"time"

	"github.com/dshills/fluxion-go/flux/emit"
)

// packet is an in-flight (from, token, value) tuple moving along edges
// during a tick.
type packet struct {
	from  string
	token string
	value float64
}

// TickStats summarizes one executed tick.
type TickStats struct {
	// Tick is the tick number just completed (1-indexed).
	Tick int

	// ParallelGroups is how many independent groups the compiler produced.
	ParallelGroups int

	// Subgroups is the total subgroup count across all groups.
	Subgroups int

	// CyclicGroups counts groups executed under the cyclic strategy.
	CyclicGroups int

	// Packets is how many staged packets were committed.
	Packets int

	// Duration is the wall time of the tick.
	Duration time.Duration
}

// NextTick advances the whole graph one step: pools and gates advance,
// the active topology is compiled into ordered or cyclic subgroups, the
// executor pulls quantities from sources and forwards packets, and staged
// deliveries commit atomically at the end. Sources are drained as packets
// are pulled; destinations only observe their deliveries after commit.
func (g *Graph) NextTick() (*TickStats, error) {
	start := time.Now()
	g.emitter.Emit(emit.Event{GraphID: g.id, Tick: g.tick + 1, Msg: "tick_start"})

	cg, err := g.compile(false)
	if err != nil {
		return nil, err
	}
	outputs, err := g.execute(cg)
	if err != nil {
		return nil, err
	}
	packets, err := g.commit(outputs)
	if err != nil {
		return nil, err
	}
	g.tick++

	cyclic := 0
	for _, pg := range cg.groups {
		if pg.cyclic {
			cyclic++
		}
	}
	stats := &TickStats{
		Tick:           g.tick,
		ParallelGroups: len(cg.groups),
		Subgroups:      cg.subgroupCount(),
		CyclicGroups:   cyclic,
		Packets:        packets,
		Duration:       time.Since(start),
	}
	g.emitter.Emit(emit.Event{
		GraphID: g.id,
		Tick:    g.tick,
		Msg:     "tick_end",
		Meta: map[string]interface{}{
			"parallel_groups": stats.ParallelGroups,
			"subgroups":       stats.Subgroups,
			"cyclic_groups":   stats.CyclicGroups,
			"packets":         stats.Packets,
			"duration_ms":     float64(stats.Duration.Microseconds()) / 1000.0,
		},
	})
	g.observeTick(stats)
	return stats, nil
}

// execute walks every parallel group in compiler order.
//
// Ordered groups run their subgroups topologically; packets addressed to
// the executing subgroup's own converter are routed straight into its
// buffer so downstream subgroups pull refreshed state within the tick.
// Cyclic groups run every subgroup against tick-start state: nothing is
// delivered in-tick, so each subgroup reads the buffers as they were when
// the tick began.
func (g *Graph) execute(cg *compiledGraph) (map[string][]packet, error) {
	outputs := make(map[string][]packet)
	for _, pg := range cg.groups {
		if pg.cyclic {
			for _, sg := range pg.subgroups {
				staged, err := g.runSubgroup(sg)
				if err != nil {
					return nil, err
				}
				mergeOutputs(outputs, staged)
			}
			continue
		}
		for _, idx := range pg.order {
			sg := pg.subgroups[idx]
			staged, err := g.runSubgroup(sg)
			if err != nil {
				return nil, err
			}
			if sg.converter != "" {
				if pkts, ok := staged[sg.converter]; ok {
					conv := g.elements[sg.converter].(*Converter)
					for _, p := range pkts {
						if err := conv.AddToBuffer(p.token, p.value); err != nil {
							return nil, err
						}
					}
					delete(staged, sg.converter)
				}
			}
			mergeOutputs(outputs, staged)
		}
	}
	return outputs, nil
}

// mergeOutputs concatenates staged packet lists into the tick-wide map,
// preserving order within each source subgroup. Keys merge in sorted
// order so the tick-wide lists are deterministic.
func mergeOutputs(all, next map[string][]packet) {
	keys := make([]string, 0, len(next))
	for k := range next {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		all[k] = append(all[k], next[k]...)
	}
}

// runSubgroup executes one subgroup: a depth-first edge traversal from
// each entry edge, sharing one visited set so router/exchanger cycles
// terminate.
func (g *Graph) runSubgroup(sg *subgroup) (map[string][]packet, error) {
	staged := make(map[string][]packet)
	visited := make(map[string]bool)
	for _, entry := range sg.entries {
		if err := g.traverse(entry, nil, visited, staged); err != nil {
			return nil, err
		}
	}
	return staged, nil
}

// traverse moves one packet step along edge edgeID.
//
// The packet is resolved from the edge's source: pools and converters are
// drained (they originate packets), gates and swaps transform an inbound
// packet. A missing inbound packet, a failed guard, a zero value, or an
// already-visited edge all terminate the branch quietly — semantic
// dead-ends are "produce nothing", never errors.
func (g *Graph) traverse(edgeID string, inbound *packet, visited map[string]bool, staged map[string][]packet) error {
	if visited[edgeID] {
		return nil
	}
	visited[edgeID] = true

	e, ok := g.elements[edgeID].(*Edge)
	if !ok {
		return nil
	}
	pass, err := e.evaluateCondition(g.VariableScope())
	if err != nil {
		return fmt.Errorf("edge %q condition: %w", e.label, err)
	}
	if !pass {
		return nil
	}

	var pkt packet
	switch src := g.elements[e.from].(type) {
	case *Pool:
		want := e.rate
		if e.Unlimited() {
			want = src.state
		}
		taken, err := src.TakeFromPool(want)
		if err != nil {
			return err
		}
		pkt = packet{from: src.id, token: src.token, value: taken}
	case *Converter:
		scope := g.VariableScope()
		want := e.rate
		if e.Unlimited() {
			max, err := src.MaximumConvertable(scope)
			if err != nil {
				return err
			}
			want = max
		}
		produced, err := src.TakeFromState(want, scope)
		if err != nil {
			return err
		}
		pkt = packet{from: src.id, token: src.token, value: produced}
	case *Gate:
		if inbound == nil {
			return nil
		}
		pass, err := src.evaluateCondition(g.VariableScope())
		if err != nil {
			return err
		}
		if !pass {
			return nil
		}
		value := inbound.value
		if !e.Unlimited() && value > e.rate {
			value = e.rate
		}
		pkt = packet{from: inbound.from, token: inbound.token, value: value}
	case *Swap:
		if inbound == nil {
			return nil
		}
		tokenOut, amountOut, ok, err := src.Swap(inbound.value, inbound.token, g.VariableScope())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		pkt = packet{from: inbound.from, token: tokenOut, value: amountOut}
	default:
		return nil
	}
	if pkt.value <= 0 {
		return nil
	}

	switch dst := g.elements[e.to].(type) {
	case *Gate:
		if sel := dst.selected; sel != "" {
			return g.traverse(sel, &pkt, visited, staged)
		}
	case *Swap:
		if pipe := dst.pipeByIn(e.id); pipe != nil && pipe.Out != "" {
			return g.traverse(pipe.Out, &pkt, visited, staged)
		}
	case *Pool:
		staged[dst.id] = append(staged[dst.id], pkt)
	case *Converter:
		staged[dst.id] = append(staged[dst.id], pkt)
	}
	return nil
}

// commit flushes the tick-wide output map: pools receive their single
// packet's value, converters buffer every packet by token. Returns the
// packet count delivered.
func (g *Graph) commit(outputs map[string][]packet) (int, error) {
	dests := make([]string, 0, len(outputs))
	for id := range outputs {
		dests = append(dests, id)
	}
	sort.Strings(dests)
	count := 0
	for _, dest := range dests {
		switch el := g.elements[dest].(type) {
		case *Pool:
			for _, p := range outputs[dest] {
				if _, err := el.AddToPool(p.value); err != nil {
					return count, err
				}
				g.observePacket(KindPool)
				count++
			}
		case *Converter:
			for _, p := range outputs[dest] {
				if err := el.AddToBuffer(p.token, p.value); err != nil {
					return count, err
				}
				g.observePacket(KindConverter)
				count++
			}
		}
	}
	return count, nil
}
