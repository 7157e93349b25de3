// Package metricsvc exposes the domain counters to Prometheus.
package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/learnsphere/core"
)

type PrometheusMetrics struct {
	registry      *prometheus.Registry
	conflicts     *prometheus.CounterVec
	gradeAudits   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

var _ core.Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the counters on their own registry, along with the Go runtime collectors.
func NewPrometheusMetrics(conf *core.Config) *PrometheusMetrics {
	labels := prometheus.Labels{"app": conf.AppName, "env": conf.Env}
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "learnsphere",
			Name:        "schedule_conflicts_total",
			Help:        "Rejected schedule and booking writes, by conflicting dimension.",
			ConstLabels: labels,
		}, []string{"dimension"}),
		gradeAudits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "learnsphere",
			Name:        "grade_audits_total",
			Help:        "Grade audit records written, by action.",
			ConstLabels: labels,
		}, []string{"action"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "learnsphere",
			Name:        "notifications_total",
			Help:        "Notifications written, by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.conflicts,
		m.gradeAudits,
		m.notifications,
	)
	return m
}

func (m *PrometheusMetrics) IncConflict(dimension string) {
	m.conflicts.WithLabelValues(dimension).Inc()
}

func (m *PrometheusMetrics) IncGradeAudit(action string) {
	m.gradeAudits.WithLabelValues(action).Inc()
}

func (m *PrometheusMetrics) AddNotifications(kind string, n int) {
	if n > 0 {
		m.notifications.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
