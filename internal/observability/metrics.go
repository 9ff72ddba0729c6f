package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type engineMetrics struct {
	openSessions prometheus.Gauge

	generationTotal    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationAttempts prometheus.Histogram

	autosaveTotal    *prometheus.CounterVec
	autosaveDuration prometheus.Histogram

	laneQueueSize *prometheus.GaugeVec
	laneTotal     *prometheus.CounterVec

	retentionSweepTotal   prometheus.Counter
	retentionSweptTotal   prometheus.Counter
	personaReloadTotal    *prometheus.CounterVec
	storeOperationsFailed *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *engineMetrics
)

func getMetrics() *engineMetrics {
	metricsOnce.Do(func() {
		m := &engineMetrics{
			openSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "convo_open_sessions",
					Help: "Sessions currently held in the registry.",
				},
			),
			generationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_generation_total",
					Help: "Generation calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			generationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "convo_generation_duration_seconds",
					Help:    "End-to-end generation duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			generationAttempts: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "convo_generation_attempts",
					Help:    "Attempts used per generation call.",
					Buckets: []float64{1, 2, 3, 4, 5},
				},
			),
			autosaveTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_autosave_total",
					Help: "Draft autosave flushes by status.",
				},
				[]string{"status"},
			),
			autosaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "convo_autosave_duration_seconds",
					Help:    "Draft autosave flush duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			laneQueueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "convo_lane_queue_size",
					Help: "Queued tasks per lane key.",
				},
				[]string{"key"},
			),
			laneTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_lane_tasks_total",
					Help: "Lane tasks by status.",
				},
				[]string{"status"},
			),
			retentionSweepTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "convo_retention_sweeps_total",
					Help: "Retention sweep runs.",
				},
			),
			retentionSweptTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "convo_retention_swept_sessions_total",
					Help: "Sessions removed by retention sweeps.",
				},
			),
			personaReloadTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_persona_reloads_total",
					Help: "Persona file reloads by status.",
				},
				[]string{"status"},
			),
			storeOperationsFailed: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convo_store_failures_total",
					Help: "Persistence collaborator failures by operation.",
				},
				[]string{"op"},
			),
		}

		prometheus.MustRegister(
			m.openSessions,
			m.generationTotal,
			m.generationDuration,
			m.generationAttempts,
			m.autosaveTotal,
			m.autosaveDuration,
			m.laneQueueSize,
			m.laneTotal,
			m.retentionSweepTotal,
			m.retentionSweptTotal,
			m.personaReloadTotal,
			m.storeOperationsFailed,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it
// is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetOpenSessions(count int) {
	getMetrics().openSessions.Set(float64(count))
}

func RecordGeneration(provider string, duration time.Duration, attempts int, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.generationTotal.WithLabelValues(provider, status).Inc()
	m.generationDuration.WithLabelValues(provider).Observe(duration.Seconds())
	m.generationAttempts.Observe(float64(attempts))
}

func RecordAutosave(duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.autosaveTotal.WithLabelValues(status).Inc()
	m.autosaveDuration.Observe(duration.Seconds())
}

func SetLaneQueueSize(key string, size int) {
	getMetrics().laneQueueSize.WithLabelValues(key).Set(float64(size))
}

func RecordLaneTask(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().laneTotal.WithLabelValues(status).Inc()
}

func RecordRetentionSweep(swept int) {
	m := getMetrics()
	m.retentionSweepTotal.Inc()
	m.retentionSweptTotal.Add(float64(swept))
}

func RecordPersonaReload(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().personaReloadTotal.WithLabelValues(status).Inc()
}

func RecordStoreFailure(op string) {
	getMetrics().storeOperationsFailed.WithLabelValues(op).Inc()
}
