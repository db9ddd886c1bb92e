package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// Backend evaluations
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec

	// Panels
	PanelRendersTotal *prometheus.CounterVec
	PanelDuration     *prometheus.HistogramVec

	// HTTP API
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	BackendAvailable prometheus.Gauge
}

// NewCollector registers the collectors on reg. Pass
// prometheus.DefaultRegisterer to expose them on /metrics.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_evaluations_total",
				Help:      "Total number of backend evaluations by kind and status",
			},
			[]string{"backend", "kind", "status"},
		),

		EvaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_evaluation_duration_seconds",
				Help:      "Backend evaluation duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"backend", "kind"},
		),

		PanelRendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panel_renders_total",
				Help:      "Total number of panel renders by panel and outcome",
			},
			[]string{"panel", "outcome"},
		),

		PanelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "panel_render_duration_seconds",
				Help:      "Full pipeline duration per panel render in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"panel"},
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		BackendAvailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_available",
				Help:      "1 when the analysis backend is connected, 0 otherwise",
			},
		),
	}
}

// RecordEvaluation is safe to call on a nil collector.
func (c *Collector) RecordEvaluation(backend, kind string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.EvaluationsTotal.WithLabelValues(backend, kind, status).Inc()
	c.EvaluationDuration.WithLabelValues(backend, kind).Observe(duration.Seconds())
}

func (c *Collector) RecordPanel(panel, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.PanelRendersTotal.WithLabelValues(panel, outcome).Inc()
	c.PanelDuration.WithLabelValues(panel).Observe(duration.Seconds())
}

func (c *Collector) RecordRequest(route, method, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(route, method, status).Inc()
	c.APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) SetBackendAvailable(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.BackendAvailable.Set(1)
		return
	}
	c.BackendAvailable.Set(0)
}
