// Package metrics records batch-run observability counters: days processed,
// hours interpolated, and per-day durations.
package metrics

import (
	"context"
	"time"
)

// Recorder is the interface pipeline components use to record metrics.
type Recorder interface {
	// RecordDayStart records that processing of a calendar day has begun.
	RecordDayStart(ctx context.Context, day time.Time)
	// RecordDayEnd records the outcome and duration of one day's processing.
	RecordDayEnd(ctx context.Context, day time.Time, duration time.Duration, err error)
	// RecordHoursInterpolated records how many missing hour slots were filled for a day.
	RecordHoursInterpolated(ctx context.Context, day time.Time, count int)
}

// NoopRecorder discards all metrics. Used when the metrics endpoint is disabled.
type NoopRecorder struct{}

// NewNoopRecorder creates a new NoopRecorder.
func NewNoopRecorder() Recorder { return &NoopRecorder{} }

func (r *NoopRecorder) RecordDayStart(ctx context.Context, day time.Time) {}
func (r *NoopRecorder) RecordDayEnd(ctx context.Context, day time.Time, duration time.Duration, err error) {
}
func (r *NoopRecorder) RecordHoursInterpolated(ctx context.Context, day time.Time, count int) {}

var _ Recorder = (*NoopRecorder)(nil)
