// Package metrics exposes Prometheus counters for runs, detections and
// notification deliveries.
package metrics

import (
	"net/http"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "salewatch"

// Metrics satisfies both reconcile.Observer and notify.Observer.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal          *prometheus.CounterVec
	SalesDetectedTotal prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
	RecordsSkipped     prometheus.Counter
	RunDuration        prometheus.Histogram
	LastSuccess        prometheus.Gauge
}

// New builds the collectors on a private registry so tests and multiple
// instances never collide on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Reconciliation runs by outcome",
		}, []string{"outcome"}),
		SalesDetectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_detected_total",
			Help:      "Sales seen for the first time",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by transport and result",
		}, []string{"transport", "result"}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Trade history entries that could not be processed",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a reconciliation run",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
	m.registry.MustRegister(
		m.RunsTotal,
		m.SalesDetectedTotal,
		m.NotificationsTotal,
		m.RecordsSkipped,
		m.RunDuration,
		m.LastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRun(result core.RunResult) {
	outcome := string(result.Outcome)
	if outcome == "" {
		outcome = "unknown"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.SalesDetectedTotal.Add(float64(result.Detected))
	if !result.StartedAt.IsZero() && result.CompletedAt.After(result.StartedAt) {
		m.RunDuration.Observe(result.CompletedAt.Sub(result.StartedAt).Seconds())
	}
	if result.OK() {
		m.LastSuccess.Set(float64(result.CompletedAt.Unix()))
	}
}

func (m *Metrics) ObserveRecordSkipped(reason string) {
	_ = reason
	m.RecordsSkipped.Inc()
}

func (m *Metrics) ObserveNotification(transport string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.NotificationsTotal.WithLabelValues(transport, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
