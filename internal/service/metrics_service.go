package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry. A nil *MetricsService is a
// valid no-op recorder.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	batches          *prometheus.CounterVec
	published        *prometheus.CounterVec
	workerOutcomes   *prometheus.CounterVec
	workerDuration   *prometheus.HistogramVec
	ledgerWriteFails prometheus.Counter
}

func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_batches_total",
		Help: "Batch submissions by result",
	}, []string{"result"})

	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_messages_published_total",
		Help: "Work queue publishes by result",
	}, []string{"result"})

	workerOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_worker_outcomes_total",
		Help: "Enrollment worker results by action and final status",
	}, []string{"action", "status"})

	workerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "enrollment_worker_duration_seconds",
		Help:    "Time spent processing one enrollment message",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	ledgerWriteFails := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_status_ledger_write_failures_total",
		Help: "Status ledger writes that failed after the relational outcome was known",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, batches, published, workerOutcomes, workerDuration, ledgerWriteFails, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		batches:          batches,
		published:        published,
		workerOutcomes:   workerOutcomes,
		workerDuration:   workerDuration,
		ledgerWriteFails: ledgerWriteFails,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

func (m *MetricsService) RecordBatch(result string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
}

func (m *MetricsService) RecordPublish(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.published.WithLabelValues(result).Inc()
}

func (m *MetricsService) RecordWorkerOutcome(action, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.workerOutcomes.WithLabelValues(action, status).Inc()
	m.workerDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func (m *MetricsService) RecordLedgerWriteFailure() {
	if m == nil {
		return
	}
	m.ledgerWriteFails.Inc()
}
