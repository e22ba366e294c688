package flux

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dshills/fluxion-go/flux/eval"
)

// JSON persistence. Each element serializes to a plain object carrying
// its kind tag and fields; expressions serialize as their source strings
// and recompile on load. Auto-label counters are preserved so labels
// synthesized after a round trip never collide with loaded ones.

type pipeJSON struct {
	In  string `json:"in,omitempty"`
	Out string `json:"out,omitempty"`
}

type elementJSON struct {
	Kind  ElementKind `json:"kind"`
	ID    string      `json:"id"`
	Label string      `json:"label"`

	Token     string   `json:"token,omitempty"`
	State     *float64 `json:"state,omitempty"`
	Capacity  *float64 `json:"capacity,omitempty"`
	Action    string   `json:"action,omitempty"`
	Condition string   `json:"condition,omitempty"`

	Weights map[string]float64 `json:"weights,omitempty"`

	Required map[string]float64 `json:"requiredInputPerUnit,omitempty"`
	Buffer   map[string]float64 `json:"buffer,omitempty"`

	TokenA  string     `json:"tokenA,omitempty"`
	TokenB  string     `json:"tokenB,omitempty"`
	AmountA *float64   `json:"amountA,omitempty"`
	AmountB *float64   `json:"amountB,omitempty"`
	K       *float64   `json:"k,omitempty"`
	Pipes   []pipeJSON `json:"pipes,omitempty"`

	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Rate      *float64 `json:"rate,omitempty"`
	SwapIndex *int     `json:"swapInputIndex,omitempty"`
}

type graphJSON struct {
	ID           string              `json:"id"`
	Tick         int                 `json:"tick"`
	Elements     []elementJSON       `json:"elements"`
	AutoCounters map[ElementKind]int `json:"autoCounters,omitempty"`
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// ToJSON serializes the graph. Elements appear in ascending id order so
// output is stable for diffing and golden tests.
func (g *Graph) ToJSON() ([]byte, error) {
	gj := graphJSON{
		ID:           g.id,
		Tick:         g.tick,
		AutoCounters: make(map[ElementKind]int, len(g.autoCounters)),
	}
	for kind, n := range g.autoCounters {
		gj.AutoCounters[kind] = n
	}
	for _, id := range g.sortedElementIDs() {
		switch el := g.elements[id].(type) {
		case *Pool:
			gj.Elements = append(gj.Elements, elementJSON{
				Kind: KindPool, ID: el.id, Label: el.label,
				Token:     el.token,
				State:     fptr(el.state),
				Capacity:  fptr(el.capacity),
				Action:    exprSource(el.action),
				Condition: condSource(el.condition),
			})
		case *Gate:
			gj.Elements = append(gj.Elements, elementJSON{
				Kind: KindGate, ID: el.id, Label: el.label,
				Weights:   copyFloatMap(el.weights),
				Condition: condSource(el.condition),
			})
		case *Converter:
			gj.Elements = append(gj.Elements, elementJSON{
				Kind: KindConverter, ID: el.id, Label: el.label,
				Token:     el.token,
				Required:  copyFloatMap(el.required),
				Buffer:    copyFloatMap(el.buffer),
				Condition: condSource(el.condition),
			})
		case *Swap:
			ej := elementJSON{
				Kind: KindSwap, ID: el.id, Label: el.label,
				Condition: condSource(el.condition),
			}
			if el.configured {
				ej.TokenA = el.tokenA
				ej.TokenB = el.tokenB
				ej.AmountA = fptr(el.amountA)
				ej.AmountB = fptr(el.amountB)
				ej.K = fptr(el.k)
			}
			for _, p := range el.pipes {
				ej.Pipes = append(ej.Pipes, pipeJSON{In: p.In, Out: p.Out})
			}
			gj.Elements = append(gj.Elements, ej)
		case *Edge:
			ej := elementJSON{
				Kind: KindEdge, ID: el.id, Label: el.label,
				From: el.from, To: el.to,
				Rate:      fptr(el.rate),
				Condition: condSource(el.condition),
			}
			if el.swapIndex >= 0 {
				ej.SwapIndex = iptr(el.swapIndex)
			}
			gj.Elements = append(gj.Elements, ej)
		}
	}
	return json.MarshalIndent(gj, "", "  ")
}

// FromJSON reconstructs a graph from ToJSON output. Expression sources
// recompile through the given evaluator; node/edge linkage rebuilds from
// the serialized edges and pipes.
func FromJSON(data []byte, ev eval.Evaluator, opts ...Option) (*Graph, error) {
	var gj graphJSON
	if err := json.Unmarshal(data, &gj); err != nil {
		return nil, fmt.Errorf("fromJSON: %w", err)
	}
	g, err := New(ev, opts...)
	if err != nil {
		return nil, err
	}
	if gj.ID != "" {
		g.id = gj.ID
	} else {
		g.id = uuid.NewString()
	}
	g.tick = gj.Tick
	for kind, n := range gj.AutoCounters {
		g.autoCounters[kind] = n
	}

	// Pass 1: nodes.
	for _, ej := range gj.Elements {
		if ej.Kind == KindEdge {
			continue
		}
		if err := g.restoreNode(ej); err != nil {
			return nil, err
		}
	}
	// Pass 2: edges and linkage.
	for _, ej := range gj.Elements {
		if ej.Kind != KindEdge {
			continue
		}
		if err := g.restoreEdge(ej); err != nil {
			return nil, err
		}
	}
	g.observeElementCounts()
	return g, nil
}

func (g *Graph) restoreNode(ej elementJSON) error {
	if _, exists := g.elements[ej.ID]; exists {
		return fmt.Errorf("fromJSON: %w: %s", ErrIDExists, ej.ID)
	}
	if !validIdent(ej.Label) {
		return fmt.Errorf("fromJSON: %w: %q", ErrInvalidLabel, ej.Label)
	}
	if _, taken := g.labels[ej.Label]; taken {
		return fmt.Errorf("fromJSON: %w: %q", ErrDuplicateLabel, ej.Label)
	}
	switch ej.Kind {
	case KindPool:
		p := newPool(ej.ID, ej.Label, g.evaluator)
		if ej.Token != "" {
			p.token = ej.Token
		}
		if ej.Capacity != nil {
			p.capacity = *ej.Capacity
		}
		if ej.State != nil {
			p.state = p.clamp(*ej.State)
		}
		if err := p.SetAction(ej.Action); err != nil {
			return fmt.Errorf("fromJSON pool %q: %w", ej.Label, err)
		}
		if err := p.SetCondition(ej.Condition); err != nil {
			return fmt.Errorf("fromJSON pool %q: %w", ej.Label, err)
		}
		g.register(p)
	case KindGate:
		gt := newGate(ej.ID, ej.Label, g.evaluator)
		for edgeID, w := range ej.Weights {
			gt.weights[edgeID] = w
		}
		if err := gt.SetCondition(ej.Condition); err != nil {
			return fmt.Errorf("fromJSON gate %q: %w", ej.Label, err)
		}
		g.register(gt)
	case KindConverter:
		c := newConverter(ej.ID, ej.Label, g.evaluator)
		if ej.Token != "" {
			c.token = ej.Token
		}
		for token, amount := range ej.Required {
			c.required[token] = amount
		}
		for token, amount := range ej.Buffer {
			c.buffer[token] = amount
		}
		if err := c.SetCondition(ej.Condition); err != nil {
			return fmt.Errorf("fromJSON converter %q: %w", ej.Label, err)
		}
		g.register(c)
	case KindSwap:
		s := newSwap(ej.ID, ej.Label, g.evaluator)
		if ej.TokenA != "" && ej.TokenB != "" && ej.AmountA != nil && ej.AmountB != nil {
			s.tokenA = ej.TokenA
			s.tokenB = ej.TokenB
			s.amountA = *ej.AmountA
			s.amountB = *ej.AmountB
			if ej.K != nil {
				s.k = *ej.K
			} else {
				s.k = s.amountA * s.amountB
			}
			s.configured = true
		}
		for _, p := range ej.Pipes {
			s.pipes = append(s.pipes, Pipe{In: p.In, Out: p.Out})
		}
		if err := s.SetCondition(ej.Condition); err != nil {
			return fmt.Errorf("fromJSON swap %q: %w", ej.Label, err)
		}
		g.register(s)
	default:
		return fmt.Errorf("fromJSON: unknown element kind %q", ej.Kind)
	}
	return nil
}

func (g *Graph) restoreEdge(ej elementJSON) error {
	if _, exists := g.elements[ej.ID]; exists {
		return fmt.Errorf("fromJSON: %w: %s", ErrEdgeIDExists, ej.ID)
	}
	if _, taken := g.labels[ej.Label]; taken {
		return fmt.Errorf("fromJSON: %w: %q", ErrDuplicateLabel, ej.Label)
	}
	src, ok := g.elements[ej.From]
	if !ok {
		return fmt.Errorf("fromJSON edge %q: %w: %s", ej.Label, ErrUnknownEndpoint, ej.From)
	}
	dst, ok := g.elements[ej.To]
	if !ok {
		return fmt.Errorf("fromJSON edge %q: %w: %s", ej.Label, ErrUnknownEndpoint, ej.To)
	}
	rate := -1.0
	if ej.Rate != nil {
		rate = *ej.Rate
	}
	swapIndex := -1
	if ej.SwapIndex != nil {
		swapIndex = *ej.SwapIndex
	}
	e := newEdge(ej.ID, ej.Label, ej.From, ej.To, rate, swapIndex, g.evaluator)
	if err := e.SetCondition(ej.Condition); err != nil {
		return fmt.Errorf("fromJSON edge %q: %w", ej.Label, err)
	}
	g.register(e)

	// Relink node slots. Gate weights and swap pipes were restored
	// verbatim with their nodes, so only the single-edge slots and
	// converter input sets need rebuilding here.
	switch s := src.(type) {
	case *Pool:
		s.output = e.id
	case *Converter:
		s.output = e.id
	case *Gate:
		if _, ok := s.weights[e.id]; !ok {
			s.weights[e.id] = defaultGateWeight
		}
	}
	switch d := dst.(type) {
	case *Pool:
		d.input = e.id
	case *Gate:
		d.input = e.id
	case *Converter:
		d.inputs[e.id] = struct{}{}
	}
	return nil
}
