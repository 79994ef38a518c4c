// Package metrics holds the Prometheus counters of the knowledge service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zettel"

// Collector owns a private registry with the service's business counters.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry           *prometheus.Registry
	notesCreated       prometheus.Counter
	connectionsCreated prometheus.Counter
	insightsCreated    prometheus.Counter
	generationFailures prometheus.Counter
	mirrorFailures     prometheus.Counter
}

// New creates a Collector and registers its counters.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		notesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_created_total",
			Help:      "Number of knowledge notes created.",
		}),
		connectionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_created_total",
			Help:      "Number of note connections written by auto-linking.",
		}),
		insightsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_created_total",
			Help:      "Number of cross-domain insights stored.",
		}),
		generationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Number of insight narratives that could not be generated.",
		}),
		mirrorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_failures_total",
			Help:      "Number of failed markdown mirror writes.",
		}),
	}
	c.registry.MustRegister(
		c.notesCreated,
		c.connectionsCreated,
		c.insightsCreated,
		c.generationFailures,
		c.mirrorFailures,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) NoteCreated() {
	if c != nil {
		c.notesCreated.Inc()
	}
}

func (c *Collector) ConnectionsCreated(n int) {
	if c != nil && n > 0 {
		c.connectionsCreated.Add(float64(n))
	}
}

func (c *Collector) InsightCreated() {
	if c != nil {
		c.insightsCreated.Inc()
	}
}

func (c *Collector) GenerationFailed() {
	if c != nil {
		c.generationFailures.Inc()
	}
}

func (c *Collector) MirrorFailed() {
	if c != nil {
		c.mirrorFailures.Inc()
	}
}
