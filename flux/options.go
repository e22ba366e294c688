package flux

import (
	"math/rand"
	"time"

	"github.com/dshills/fluxion-go/flux/emit"
)

// Option is a functional option for configuring a Graph.
//
// Options are applied by New in order; later options win. Only the
// evaluator is a required collaborator — everything else defaults to a
// quiet, self-contained setup (null emitter, time-seeded PRNG, no
// metrics).
type Option func(*graphConfig) error

// graphConfig collects options before New builds the Graph.
type graphConfig struct {
	graphID string
	rng     Rand
	emitter emit.Emitter
	metrics *Metrics
}

func defaultConfig() graphConfig {
	return graphConfig{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- simulation sampling, not security
		emitter: emit.NewNullEmitter(),
	}
}

// WithGraphID pins the graph's identifier instead of auto-generating one.
// The id appears on every emitted event.
func WithGraphID(id string) Option {
	return func(cfg *graphConfig) error {
		cfg.graphID = id
		return nil
	}
}

// WithRand injects the random source used for gate sampling.
//
// Pin this to a seeded source for reproducible routing (Graph.SetRand
// replaces it after construction):
//
//	g, _ := flux.New(eval.New(), flux.WithRand(rand.New(rand.NewSource(42))))
func WithRand(r Rand) Option {
	return func(cfg *graphConfig) error {
		cfg.rng = r
		return nil
	}
}

// WithEmitter installs the observability emitter that receives tick
// lifecycle events. Defaults to emit.NewNullEmitter().
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *graphConfig) error {
		if e == nil {
			e = emit.NewNullEmitter()
		}
		cfg.emitter = e
		return nil
	}
}

// WithMetrics installs Prometheus metrics collection for tick execution.
func WithMetrics(m *Metrics) Option {
	return func(cfg *graphConfig) error {
		cfg.metrics = m
		return nil
	}
}
