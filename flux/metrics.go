package flux

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics for tick execution,
// namespaced "fluxion_".
//
// Exposed series:
//
//  1. ticks_total (counter): ticks executed on this process.
//  2. tick_duration_ms (histogram): wall time per tick.
//  3. packets_total (counter): packets committed, labeled by destination
//     kind (pool / converter).
//  4. parallel_groups (gauge): parallel group count of the latest tick.
//  5. cyclic_groups_total (counter): groups executed under the cyclic
//     strategy — a persistent non-zero rate usually means a converter
//     cycle the model author should know about.
//  6. elements (gauge): live element count, labeled by kind. Updated on
//     every edit operation and after each tick.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flux.NewMetrics(registry)
//	g, _ := flux.New(eval.New(), flux.WithMetrics(metrics))
//
//	// Expose via HTTP for scraping:
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type Metrics struct {
	ticks          prometheus.Counter
	tickDuration   prometheus.Histogram
	packets        *prometheus.CounterVec
	parallelGroups prometheus.Gauge
	cyclicGroups   prometheus.Counter
	elements       *prometheus.GaugeVec
}

// NewMetrics creates and registers the tick metrics with the given
// registerer. Pass prometheus.DefaultRegisterer to use the global
// registry, or a private registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxion",
			Name:      "ticks_total",
			Help:      "Total ticks executed.",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fluxion",
			Name:      "tick_duration_ms",
			Help:      "Tick wall time in milliseconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500},
		}),
		packets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxion",
			Name:      "packets_total",
			Help:      "Packets committed to destinations.",
		}, []string{"dest_kind"}),
		parallelGroups: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fluxion",
			Name:      "parallel_groups",
			Help:      "Parallel group count of the most recent tick.",
		}),
		cyclicGroups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxion",
			Name:      "cyclic_groups_total",
			Help:      "Parallel groups executed under the cyclic strategy.",
		}),
		elements: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fluxion",
			Name:      "elements",
			Help:      "Live elements in the graph by kind.",
		}, []string{"kind"}),
	}
}

// observeTick records one completed tick. Nil-safe so the graph never
// checks whether metrics are installed.
func (g *Graph) observeTick(stats *TickStats) {
	m := g.metrics
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(float64(stats.Duration.Microseconds()) / 1000.0)
	m.parallelGroups.Set(float64(stats.ParallelGroups))
	m.cyclicGroups.Add(float64(stats.CyclicGroups))
	g.observeElementCounts()
}

// observePacket counts one committed packet by destination kind.
func (g *Graph) observePacket(kind ElementKind) {
	if g.metrics == nil {
		return
	}
	g.metrics.packets.WithLabelValues(string(kind)).Inc()
}

// observeElementCounts re-gauges the live element population per kind.
// Every kind is set, including those at zero, so deletions show up.
// Nil-safe like the other observers.
func (g *Graph) observeElementCounts() {
	if g.metrics == nil {
		return
	}
	counts := make(map[ElementKind]int, len(g.elements))
	for _, el := range g.elements {
		counts[el.Kind()]++
	}
	for _, kind := range []ElementKind{KindPool, KindGate, KindConverter, KindSwap, KindEdge} {
		g.metrics.elements.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}
