package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	SyncRunsTotal     *prometheus.CounterVec
	SyncDuration      prometheus.Histogram
	AppointmentsTotal *prometheus.CounterVec
	SnapshotSize      prometheus.Gauge
	PatientsGauge     prometheus.Gauge

	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec

	StatusWritesTotal *prometheus.CounterVec

	JournalEntriesTotal  prometheus.Counter
	JournalBufferDropped prometheus.Counter
}

// NewCollector registers the collectors with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewCollector(serviceName string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		SyncRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync passes by winning source and outcome (ok or degraded).",
		}, []string{"source", "outcome"}),

		SyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Sync pass latency distribution.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		AppointmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "sync",
			Name:      "appointments_total",
			Help:      "Appointments seen by sync passes, by classification (new, updated, dropped).",
		}, []string{"class"}),

		SnapshotSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "sync",
			Name:      "snapshot_size",
			Help:      "Appointments held in the reconciliation snapshot.",
		}),

		PatientsGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "sync",
			Name:      "patients",
			Help:      "Patients in the derived roster after the last pass.",
		}),

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Source stage fetch latency distribution.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30},
		}, []string{"stage"}),

		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "source",
			Name:      "failures_total",
			Help:      "Source stage failures. A stage failing every pass means the chain is running on fallback data.",
		}, []string{"stage"}),

		StatusWritesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinic",
			Name:      "status_writes_total",
			Help:      "Appointment status write-backs by result.",
		}, []string{"result"}),

		JournalEntriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "journal",
			Name:      "entries_total",
			Help:      "Total sync journal entries written.",
		}),

		JournalBufferDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "journal",
			Name:      "buffer_dropped_total",
			Help:      "Journal entries dropped due to full buffer. Alert if non-zero.",
		}),
	}
}

// The helpers below accept a nil receiver so components can run without a
// collector in tests.

func (c *Collector) ObserveStage(stage string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		c.StageFailures.WithLabelValues(stage).Inc()
	}
}

func (c *Collector) ObserveSync(source string, degraded bool, d time.Duration, newCount, updated, dropped, snapshot, patients int) {
	if c == nil {
		return
	}
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	c.SyncRunsTotal.WithLabelValues(source, outcome).Inc()
	c.SyncDuration.Observe(d.Seconds())
	c.AppointmentsTotal.WithLabelValues("new").Add(float64(newCount))
	c.AppointmentsTotal.WithLabelValues("updated").Add(float64(updated))
	c.AppointmentsTotal.WithLabelValues("dropped").Add(float64(dropped))
	c.SnapshotSize.Set(float64(snapshot))
	c.PatientsGauge.Set(float64(patients))
}

func (c *Collector) ObserveStatusWrite(result string) {
	if c == nil {
		return
	}
	c.StatusWritesTotal.WithLabelValues(result).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
