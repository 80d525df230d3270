package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

// PrometheusRecorder is a Prometheus implementation of the Recorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	dayDurationSeconds *prometheus.HistogramVec
	dayStatusCounter   *prometheus.CounterVec
	hoursInterpolated  prometheus.Counter
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		dayDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forcing_day_duration_seconds",
			Help:    "Duration of per-day forcing assembly.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		dayStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forcing_day_status_total",
			Help: "Total number of processed days by outcome.",
		}, []string{"status"}),
		hoursInterpolated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forcing_hours_interpolated_total",
			Help: "Total missing hour slots filled by interpolation.",
		}),
	}

	registry.MustRegister(r.dayDurationSeconds)
	registry.MustRegister(r.dayStatusCounter)
	registry.MustRegister(r.hoursInterpolated)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordDayStart records the start of a day's processing.
func (r *PrometheusRecorder) RecordDayStart(ctx context.Context, day time.Time) {
	logger.Debugf("Metrics: day %s started.", day.Format("2006-01-02"))
}

// RecordDayEnd records the outcome and duration of a day's processing.
func (r *PrometheusRecorder) RecordDayEnd(ctx context.Context, day time.Time, duration time.Duration, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	r.dayStatusCounter.WithLabelValues(status).Inc()
	r.dayDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
	logger.Debugf("Metrics: day %s %s. Duration: %.3fs", day.Format("2006-01-02"), status, duration.Seconds())
}

// RecordHoursInterpolated records filled hour slots.
func (r *PrometheusRecorder) RecordHoursInterpolated(ctx context.Context, day time.Time, count int) {
	if count > 0 {
		r.hoursInterpolated.Add(float64(count))
	}
}

var _ Recorder = (*PrometheusRecorder)(nil)
