// Package metrics exports scan counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scanbridge/scanner"
)

// Metrics holds the scan collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	started      prometheus.Counter
	results      *prometheus.CounterVec
	decodeTime   *prometheus.HistogramVec
	notifyErrors prometheus.Counter
}

// New creates the collectors in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scanbridge",
			Name:      "scans_started_total",
			Help:      "Scans started by a trigger.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scanbridge",
			Name:      "scan_results_total",
			Help:      "Finished scans by outcome.",
		}, []string{"outcome"}),
		decodeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scanbridge",
			Name:      "decode_time_seconds",
			Help:      "Engine decode time of successful scans.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1},
		}, []string{"symbology"}),
		notifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scanbridge",
			Name:      "notify_errors_total",
			Help:      "Decoded results that could not be delivered to every host.",
		}),
	}

	m.registry.MustRegister(m.started, m.results, m.decodeTime, m.notifyErrors)
	return m
}

// ScanStarted counts a started scan.
func (m *Metrics) ScanStarted(*scanner.Session) {
	m.started.Inc()
}

// Observe records a finished scan.
func (m *Metrics) Observe(res scanner.ScanResult) {
	m.results.WithLabelValues(res.Outcome.String()).Inc()

	if res.Outcome == scanner.OutcomeDecoded {
		sym := res.SymName
		if sym == "" {
			sym = "unknown"
		}
		m.decodeTime.WithLabelValues(sym).Observe(res.DecodeTime.Seconds())
	}
	if res.NotifyErr != nil {
		m.notifyErrors.Inc()
	}
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
