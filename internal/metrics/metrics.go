// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine counts occurrence creation, lifecycle transitions and awarded
// points. It implements chore.Recorder.
type Engine struct {
	registry    *prometheus.Registry
	created     prometheus.Counter
	transitions *prometheus.CounterVec
	points      prometheus.Counter
}

// New registers the engine collectors on a fresh registry together with
// the Go runtime and process collectors.
func New() *Engine {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e := &Engine{
		registry: reg,
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorewheel",
			Name:      "occurrences_created_total",
			Help:      "Occurrences materialized from recurring chores.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chorewheel",
			Name:      "occurrence_transitions_total",
			Help:      "Occurrence lifecycle transitions by kind.",
		}, []string{"transition"}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorewheel",
			Name:      "points_awarded_total",
			Help:      "Points credited to family members.",
		}),
	}
	reg.MustRegister(e.created, e.transitions, e.points)
	return e
}

func (e *Engine) OccurrenceCreated() {
	e.created.Inc()
}

func (e *Engine) Transition(event string) {
	e.transitions.WithLabelValues(event).Inc()
}

func (e *Engine) PointsAwarded(points int) {
	if points > 0 {
		e.points.Add(float64(points))
	}
}

// Handler serves the registry in the Prometheus text format.
func (e *Engine) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Registry returns the underlying registry.
func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}
