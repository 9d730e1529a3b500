package controlplane

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fentz26/ccgateway/internal/models"
	"github.com/fentz26/ccgateway/internal/registry"
)

const metricsNamespace = "ccgateway"

// Metrics exposes Prometheus collectors that report gateway activity. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests          *prometheus.CounterVec
	runnerInvocations *prometheus.CounterVec
	runnerDuration    *prometheus.HistogramVec
	gatherer          prometheus.Gatherer
}

// MustNewMetrics registers the gateway collectors with reg. counts feeds the
// task gauges and may be nil. Registration errors panic, mirroring promauto.
func MustNewMetrics(reg *prometheus.Registry, counts func() registry.Counts) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)
	runnerInvocations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runner_invocations_total",
			Help:      "Invocations of the external binary, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)
	runnerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "runner_duration_seconds",
			Help:      "Wall time of external binary invocations.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"command"},
	)

	collectors := []prometheus.Collector{requests, runnerInvocations, runnerDuration}
	if counts != nil {
		for _, status := range []models.TaskStatus{models.TaskStatusRunning, models.TaskStatusCompleted, models.TaskStatusFailed} {
			status := status
			collectors = append(collectors, prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Namespace:   metricsNamespace,
					Name:        "tasks",
					Help:        "Tasks in the registry, by status.",
					ConstLabels: prometheus.Labels{"status": string(status)},
				},
				func() float64 { return float64(countFor(counts(), status)) },
			))
		}
	}
	reg.MustRegister(collectors...)

	return &Metrics{
		requests:          requests,
		runnerInvocations: runnerInvocations,
		runnerDuration:    runnerDuration,
		gatherer:          reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) observeRun(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runnerInvocations.WithLabelValues(command, outcome).Inc()
	m.runnerDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

func countFor(c registry.Counts, status models.TaskStatus) int {
	switch status {
	case models.TaskStatusRunning:
		return c.Running
	case models.TaskStatusCompleted:
		return c.Completed
	case models.TaskStatusFailed:
		return c.Failed
	}
	return 0
}
