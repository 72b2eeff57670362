package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsSimulated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greedos_requests_simulated_total",
			Help: "Total number of simulated requests counted by load workers",
		},
	)

	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greedos_workers_active",
			Help: "Number of load workers currently running",
		},
	)

	WorkerFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greedos_worker_faults_total",
			Help: "Total number of load workers that terminated on a fault",
		},
	)

	EventsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greedos_events_appended_total",
			Help: "Total number of forensic events appended to the event log",
		},
		[]string{"category"},
	)

	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greedos_sink_writes_total",
			Help: "Durable sink mirror writes by result",
		},
		[]string{"result"},
	)

	AlertsFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greedos_alerts_fired_total",
			Help: "Total number of traffic alerts fired",
		},
	)

	DashboardRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "greedos_dashboard_render_duration_seconds",
			Help:    "Time taken to snapshot and render the dashboard",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Sink write results.
const (
	ResultWritten = "written"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)
