// Package metrics holds the Prometheus collectors for the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mediadrop"

// Metrics is one set of bot collectors. Components share the instance built
// in main; tests build their own.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	Commits          *prometheus.CounterVec
	Redemptions      *prometheus.CounterVec
	PurgeDeletes     *prometheus.CounterVec
	PurgeJobsPending prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_sessions_started_total",
			Help:      "Upload sessions started.",
		}),
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Upload commits by result (ok, empty, error).",
		}, []string{"result"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Token redemptions by result (ok, not_found, error).",
		}, []string{"result"}),
		PurgeDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_deletes_total",
			Help:      "Delivered-message deletions attempted by purge jobs, by result.",
		}, []string{"result"}),
		PurgeJobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "purge_jobs_pending",
			Help:      "Purge jobs waiting for their deadline.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SessionsStarted,
		m.Commits,
		m.Redemptions,
		m.PurgeDeletes,
		m.PurgeJobsPending,
	}
}

// NewRegistry returns a registry with m and the Go runtime collectors
// registered.
func NewRegistry(m *Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range m.collectors() {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
