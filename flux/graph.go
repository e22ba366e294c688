package flux

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/fluxion-go/flux/eval"
	"github.com/dshills/fluxion-go/flux/emit"
)

// Graph is the entity store and public surface of the engine.
//
// Every element (node or edge) lives in a single id-keyed arena; the
// bidirectional node<->edge links are stored as id values on both sides,
// so deletion cascades are plain worklists over ids and no cyclic
// ownership exists. Labels are unique across all elements and index into
// the arena.
//
// A Graph is not safe for concurrent use. A tick is an atomic
// transformation of the whole graph; no external mutation may interleave
// with NextTick.
type Graph struct {
	id string

	evaluator eval.Evaluator
	rng       Rand
	emitter   emit.Emitter
	metrics   *Metrics

	elements     map[string]Element
	labels       map[string]string // label -> element id
	autoCounters map[ElementKind]int

	tick int

	// currentDisabled is the disabled-edge set of the tick currently
	// being compiled or executed. Valid only inside NextTick/CheckGraph.
	currentDisabled map[string]bool
}

// New constructs an empty graph around the given expression evaluator.
// The evaluator is a required collaborator: node guards and actions
// compile through it.
//
//	g, err := flux.New(eval.New(),
//	    flux.WithRand(rand.New(rand.NewSource(1))),
//	    flux.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	)
func New(ev eval.Evaluator, opts ...Option) (*Graph, error) {
	if ev == nil {
		return nil, fmt.Errorf("flux.New: evaluator must not be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	id := cfg.graphID
	if id == "" {
		id = uuid.NewString()
	}
	return &Graph{
		id:           id,
		evaluator:    ev,
		rng:          cfg.rng,
		emitter:      cfg.emitter,
		metrics:      cfg.metrics,
		elements:     make(map[string]Element),
		labels:       make(map[string]string),
		autoCounters: make(map[ElementKind]int),
	}, nil
}

// ID returns the graph's identifier (used in emitted events).
func (g *Graph) ID() string { return g.id }

// Tick returns how many ticks have been executed.
func (g *Graph) Tick() int { return g.tick }

// SetRand replaces the random source used for gate sampling.
func (g *Graph) SetRand(r Rand) { g.rng = r }

// sortedElementIDs returns every element id in ascending order. All
// whole-graph iteration goes through this so map ordering never reaches
// simulation results.
func (g *Graph) sortedElementIDs() []string {
	ids := make([]string, 0, len(g.elements))
	for id := range g.elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// autoLabel synthesizes the next free default label for a kind: kind$0,
// kind$1, ... The per-kind counter only moves forward, so labels freed by
// deletion are not reused.
func (g *Graph) autoLabel(kind ElementKind) string {
	for {
		n := g.autoCounters[kind]
		g.autoCounters[kind]++
		label := fmt.Sprintf("%s$%d", kind, n)
		if _, taken := g.labels[label]; !taken {
			return label
		}
	}
}

// register indexes a freshly constructed element.
func (g *Graph) register(el Element) {
	g.elements[el.ID()] = el
	g.labels[el.Label()] = el.ID()
}

// AddNode creates a node of the given kind.
//
// An empty id auto-generates one; an empty label synthesizes kind$<n>.
// Errors when the id is taken, the label collides, or the label fails the
// identifier lexer.
func (g *Graph) AddNode(kind ElementKind, id, label string) (Element, error) {
	if !isNodeKind(kind) {
		return nil, fmt.Errorf("addNode: unknown node kind %q", kind)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := g.elements[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrIDExists, id)
	}
	if label == "" {
		label = g.autoLabel(kind)
	} else {
		if !validIdent(label) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
		if _, taken := g.labels[label]; taken {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
		}
	}
	var el Element
	switch kind {
	case KindPool:
		el = newPool(id, label, g.evaluator)
	case KindGate:
		el = newGate(id, label, g.evaluator)
	case KindConverter:
		el = newConverter(id, label, g.evaluator)
	case KindSwap:
		el = newSwap(id, label, g.evaluator)
	}
	g.register(el)
	g.observeElementCounts()
	return el, nil
}

// defaultGateWeight is the weight a fresh gate output edge starts with.
// One, so a gate routes uniformly until weights are tuned.
const defaultGateWeight = 1.0

// edgeConfig collects the optional AddEdge parameters.
type edgeConfig struct {
	label     string
	swapIndex int
}

// EdgeOption customizes AddEdge.
type EdgeOption func(*edgeConfig)

// WithEdgeLabel names the edge instead of synthesizing edge$<n>.
func WithEdgeLabel(label string) EdgeOption {
	return func(c *edgeConfig) { c.label = label }
}

// WithSwapIndex names the pipe slot the edge attaches to on a swap
// endpoint. Required whenever either endpoint is a swap.
func WithSwapIndex(index int) EdgeOption {
	return func(c *edgeConfig) { c.swapIndex = index }
}

// AddEdge connects from -> to with the given per-tick rate (negative =
// unlimited).
//
// Connecting into an occupied single-edge slot displaces the edge already
// there: the old edge is deleted and its other endpoint's linkage cleared.
// When either endpoint is a swap, WithSwapIndex is required; the pipe slot
// is created if absent and this edge attaches to its in or out side,
// displacing any edge previously attached to that side.
func (g *Graph) AddEdge(id, from, to string, rate float64, opts ...EdgeOption) (*Edge, error) {
	cfg := edgeConfig{swapIndex: -1}
	for _, opt := range opts {
		opt(&cfg)
	}

	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := g.elements[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrEdgeIDExists, id)
	}
	if from == to {
		return nil, fmt.Errorf("%w: %s", ErrSelfLoop, from)
	}
	src, ok := g.elements[from]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, from)
	}
	dst, ok := g.elements[to]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, to)
	}
	if src.Kind() == KindEdge {
		return nil, fmt.Errorf("%w: %s", ErrEdgeFromEdge, from)
	}
	if dst.Kind() == KindEdge {
		return nil, fmt.Errorf("%w: %s", ErrEdgeToEdge, to)
	}

	srcSwap, srcIsSwap := src.(*Swap)
	dstSwap, dstIsSwap := dst.(*Swap)
	if (srcIsSwap || dstIsSwap) && cfg.swapIndex < 0 {
		return nil, ErrMissingSwapIndex
	}
	if srcIsSwap && cfg.swapIndex > len(srcSwap.pipes) {
		return nil, fmt.Errorf("%w: %d", ErrSwapIndexOutOfRange, cfg.swapIndex)
	}
	if dstIsSwap && cfg.swapIndex > len(dstSwap.pipes) {
		return nil, fmt.Errorf("%w: %d", ErrSwapIndexOutOfRange, cfg.swapIndex)
	}

	label := cfg.label
	if label == "" {
		label = g.autoLabel(KindEdge)
	} else {
		if !validIdent(label) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
		if _, taken := g.labels[label]; taken {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
		}
	}

	// Displace whatever already occupies the slots this edge claims.
	// Deleting an edge clears its other endpoint's linkage too.
	for _, victim := range g.conflictingEdges(src, dst, cfg.swapIndex) {
		if _, err := g.DeleteElement(victim); err != nil {
			return nil, err
		}
	}

	// Claim the pipe slots after displacement: deleting a conflicting
	// edge can trim trailing empty pipes, so the range re-checks here.
	var srcPipe, dstPipe *Pipe
	if srcIsSwap {
		pipe, err := srcSwap.getOrCreatePipe(cfg.swapIndex)
		if err != nil {
			return nil, err
		}
		srcPipe = pipe
	}
	if dstIsSwap {
		pipe, err := dstSwap.getOrCreatePipe(cfg.swapIndex)
		if err != nil {
			return nil, err
		}
		dstPipe = pipe
	}

	swapIndex := -1
	if srcIsSwap || dstIsSwap {
		swapIndex = cfg.swapIndex
	}
	e := newEdge(id, label, from, to, rate, swapIndex, g.evaluator)
	g.register(e)

	switch s := src.(type) {
	case *Pool:
		s.output = id
	case *Gate:
		s.weights[id] = defaultGateWeight
	case *Converter:
		s.output = id
	case *Swap:
		srcPipe.Out = id
	}
	switch d := dst.(type) {
	case *Pool:
		d.input = id
	case *Gate:
		d.input = id
	case *Converter:
		d.inputs[id] = struct{}{}
	case *Swap:
		dstPipe.In = id
	}
	g.observeElementCounts()
	return e, nil
}

// conflictingEdges lists edges the new connection displaces: occupants of
// single-edge slots on either endpoint, and occupants of the claimed pipe
// sides on swap endpoints.
func (g *Graph) conflictingEdges(src, dst Element, swapIndex int) []string {
	var victims []string
	switch s := src.(type) {
	case *Pool:
		if s.output != "" {
			victims = append(victims, s.output)
		}
	case *Converter:
		if s.output != "" {
			victims = append(victims, s.output)
		}
	case *Swap:
		if swapIndex < len(s.pipes) && s.pipes[swapIndex].Out != "" {
			victims = append(victims, s.pipes[swapIndex].Out)
		}
	}
	switch d := dst.(type) {
	case *Pool:
		if d.input != "" {
			victims = append(victims, d.input)
		}
	case *Gate:
		if d.input != "" {
			victims = append(victims, d.input)
		}
	case *Swap:
		if swapIndex < len(d.pipes) && d.pipes[swapIndex].In != "" {
			victims = append(victims, d.pipes[swapIndex].In)
		}
	}
	return victims
}

// unlinkEdge clears the input/output slots referencing a dying edge on
// both of its endpoints.
func (g *Graph) unlinkEdge(e *Edge) {
	if src, ok := g.elements[e.from]; ok {
		switch s := src.(type) {
		case *Pool:
			if s.output == e.id {
				s.output = ""
			}
		case *Gate:
			delete(s.weights, e.id)
			if s.selected == e.id {
				s.selected = ""
			}
		case *Converter:
			if s.output == e.id {
				s.output = ""
			}
		case *Swap:
			s.detachEdge(e.id)
		}
	}
	if dst, ok := g.elements[e.to]; ok {
		switch d := dst.(type) {
		case *Pool:
			if d.input == e.id {
				d.input = ""
			}
		case *Gate:
			if d.input == e.id {
				d.input = ""
			}
		case *Converter:
			delete(d.inputs, e.id)
		case *Swap:
			d.detachEdge(e.id)
		}
	}
}

// incidentEdges returns the ids of every edge referencing nodeID.
func (g *Graph) incidentEdges(nodeID string) []string {
	var out []string
	for _, id := range g.sortedElementIDs() {
		if e, ok := g.elements[id].(*Edge); ok {
			if e.from == nodeID || e.to == nodeID {
				out = append(out, id)
			}
		}
	}
	return out
}

// DeleteElement removes an element and everything that transitively
// depends on it: deleting a node removes every incident edge; deleting an
// edge clears the matching linkage on both endpoints. Returns the ids
// removed, in removal order.
func (g *Graph) DeleteElement(id string) ([]string, error) {
	if _, ok := g.elements[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrIDNotFound, id)
	}
	var removed []string
	work := []string{id}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		el, ok := g.elements[cur]
		if !ok {
			continue
		}
		if e, isEdge := el.(*Edge); isEdge {
			g.unlinkEdge(e)
		} else {
			work = append(work, g.incidentEdges(cur)...)
		}
		delete(g.elements, cur)
		delete(g.labels, el.Label())
		removed = append(removed, cur)
	}
	g.observeElementCounts()
	return removed, nil
}

// GetElement returns the element with the given id.
func (g *Graph) GetElement(id string) (Element, error) {
	el, ok := g.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIDNotFound, id)
	}
	return el, nil
}

// GetElementByLabel returns the element carrying the given label.
func (g *Graph) GetElementByLabel(label string) (Element, error) {
	id, ok := g.labels[label]
	if !ok {
		return nil, fmt.Errorf("%w: label %q", ErrIDNotFound, label)
	}
	return g.elements[id], nil
}

// SetLabel renames an element, validating lexical form and uniqueness and
// swapping the label index entry.
func (g *Graph) SetLabel(id, label string) error {
	el, ok := g.elements[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIDNotFound, id)
	}
	if !validIdent(label) {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	if owner, taken := g.labels[label]; taken {
		if owner == id {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
	}
	delete(g.labels, el.Label())
	el.setLabel(label)
	g.labels[label] = id
	return nil
}

// SetConverterRequiredInputPerUnit updates one recipe entry on a
// converter. A positive amount sets the requirement after checking the
// token is actually produced somewhere upstream of the converter; a
// non-positive amount deletes the entry.
func (g *Graph) SetConverterRequiredInputPerUnit(convID, token string, amount float64) error {
	el, ok := g.elements[convID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIDNotFound, convID)
	}
	conv, ok := el.(*Converter)
	if !ok {
		return ErrNotConverter
	}
	if amount <= 0 {
		conv.setRequired(token, amount)
		return nil
	}
	upstream := g.upstreamTokensOf(conv)
	if _, produced := upstream[token]; !produced {
		return fmt.Errorf("%w: %q", ErrTokenNamesUndefined, token)
	}
	conv.setRequired(token, amount)
	return nil
}

// SetGateOutputWeight updates the weight of one of a gate's output edges.
func (g *Graph) SetGateOutputWeight(gateID, edgeID string, weight float64) error {
	el, ok := g.elements[gateID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIDNotFound, gateID)
	}
	gate, ok := el.(*Gate)
	if !ok {
		return ErrNotGate
	}
	return gate.setWeight(edgeID, weight)
}

// upstreamTokensOf computes the union, over the converter's input edges,
// of the tokens that could flow in: following each edge backward, a pool
// or converter contributes its token, a gate contributes whatever its own
// input could carry, and a configured swap contributes both of its sides.
func (g *Graph) upstreamTokensOf(conv *Converter) map[string]struct{} {
	out := make(map[string]struct{})
	visited := make(map[string]bool)
	for edgeID := range conv.inputs {
		g.tokensIntoEdge(edgeID, visited, out)
	}
	return out
}

func (g *Graph) tokensIntoEdge(edgeID string, visited map[string]bool, out map[string]struct{}) {
	if visited[edgeID] {
		return
	}
	visited[edgeID] = true
	e, ok := g.elements[edgeID].(*Edge)
	if !ok {
		return
	}
	src, ok := g.elements[e.from]
	if !ok {
		return
	}
	switch s := src.(type) {
	case *Pool:
		out[s.token] = struct{}{}
	case *Converter:
		out[s.token] = struct{}{}
	case *Gate:
		if s.input != "" {
			g.tokensIntoEdge(s.input, visited, out)
		}
	case *Swap:
		if s.configured {
			out[s.tokenA] = struct{}{}
			out[s.tokenB] = struct{}{}
		}
	}
}

// Clone deep-copies the graph: every element is copied by value and the
// indices reconstructed. Collaborators (evaluator, random source, emitter,
// metrics) are shared; no mutable simulation state leaks between the
// copies.
func (g *Graph) Clone() *Graph {
	ng := &Graph{
		id:           g.id,
		evaluator:    g.evaluator,
		rng:          g.rng,
		emitter:      g.emitter,
		metrics:      g.metrics,
		elements:     make(map[string]Element, len(g.elements)),
		labels:       make(map[string]string, len(g.labels)),
		autoCounters: make(map[ElementKind]int, len(g.autoCounters)),
		tick:         g.tick,
	}
	for id, el := range g.elements {
		ng.elements[id] = el.cloneElement()
	}
	for label, id := range g.labels {
		ng.labels[label] = id
	}
	for kind, n := range g.autoCounters {
		ng.autoCounters[kind] = n
	}
	return ng
}
