// Package metrics exposes session counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters one session maintains.
type Metrics struct {
	registry *prometheus.Registry

	LinesIn    prometheus.Counter
	LinesOut   prometheus.Counter
	Reconnects prometheus.Counter
}

// New creates a registry with the session's counters registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LinesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "athena_lines_received_total",
			Help: "Protocol lines parsed from the uplink.",
		}),
		LinesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "athena_lines_sent_total",
			Help: "Protocol lines written to the uplink.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "athena_reconnects_total",
			Help: "Times the connection died and the reconnect policy ran.",
		}),
	}

	m.registry.MustRegister(m.LinesIn, m.LinesOut, m.Reconnects)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
