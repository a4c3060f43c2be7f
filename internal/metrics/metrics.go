// Package metrics exports fuzzing progress as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"satfuzz/internal/fuzz"
)

const namespace = "satfuzz"

// Collector is a fuzz.Observer that records iteration outcomes and stage
// durations. Metrics are registered on the given registry, never globally.
type Collector struct {
	iterations  *prometheus.CounterVec
	invocations *prometheus.HistogramVec
	currentSeed prometheus.Gauge
	runs        *prometheus.CounterVec
}

var _ fuzz.Observer = (*Collector)(nil)

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Finished fuzzing iterations by outcome.",
		}, []string{"outcome"}),
		invocations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_seconds",
			Help:      "Wall-clock duration of external invocations by stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		currentSeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_seed",
			Help:      "Seed of the iteration in progress.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by terminal state.",
		}, []string{"state"}),
	}
	for _, m := range []prometheus.Collector{c.iterations, c.invocations, c.currentSeed, c.runs} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) IterationStarted(seed fuzz.Seed) {
	c.currentSeed.Set(float64(seed))
}

func (c *Collector) IterationFinished(it fuzz.Iteration) {
	c.iterations.WithLabelValues(string(it.Outcome)).Inc()
	for stage, d := range it.Timings {
		c.invocations.WithLabelValues(string(stage)).Observe(d.Seconds())
	}
}

func (c *Collector) RunFinished(rep fuzz.Report) {
	c.runs.WithLabelValues(string(rep.State)).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
