// Package pipeline orchestrates per-day forcing assembly and the date-range
// batch loop.
package pipeline

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tidewaterlab/gemflux/internal/assemble"
	"github.com/tidewaterlab/gemflux/internal/interp"
	"github.com/tidewaterlab/gemflux/internal/metrics"
	"github.com/tidewaterlab/gemflux/internal/solar"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
	"github.com/tidewaterlab/gemflux/internal/writer"
)

const moduleName = "pipeline"

// Pipeline runs the per-day assembly chain: assemble, fill gaps, fill missing
// variables, difference precipitation counters, smooth solar, write. Days are
// processed sequentially; each day's sequence is private, so nothing here
// needs synchronization.
type Pipeline struct {
	assembler    *assemble.Assembler
	interpolator *interp.Interpolator
	smoother     *solar.Smoother
	writer       *writer.DailyWriter
	recorder     metrics.Recorder
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	assembler *assemble.Assembler,
	interpolator *interp.Interpolator,
	smoother *solar.Smoother,
	dailyWriter *writer.DailyWriter,
	recorder metrics.Recorder,
) *Pipeline {
	return &Pipeline{
		assembler:    assembler,
		interpolator: interpolator,
		smoother:     smoother,
		writer:       dailyWriter,
		recorder:     recorder,
	}
}

// ProcessDay assembles and persists the forcing file for one calendar day.
// On failure no output file exists for the day and the returned error carries
// the date context needed to re-run it.
func (p *Pipeline) ProcessDay(ctx context.Context, day time.Time) error {
	started := time.Now()
	p.recorder.RecordDayStart(ctx, day)

	err := p.processDay(ctx, day)
	p.recorder.RecordDayEnd(ctx, day, time.Since(started), err)
	return err
}

func (p *Pipeline) processDay(ctx context.Context, day time.Time) error {
	seq, err := p.assembler.Assemble(ctx, day)
	if err != nil {
		return err
	}

	missing := len(seq.EmptySlots())
	if err := p.interpolator.FillGaps(seq); err != nil {
		return err
	}
	p.recorder.RecordHoursInterpolated(ctx, day, missing)

	if err := p.interpolator.FillMissingVars(seq); err != nil {
		return err
	}

	// Differencing runs on the gap-filled sequence so interpolated
	// accumulations yield consistent per-hour increments.
	if err := assemble.RepairPrecipCounters(seq); err != nil {
		return err
	}

	p.smoother.Smooth(seq)

	if _, err := p.writer.WriteDay(seq); err != nil {
		return err
	}
	return nil
}

// Run processes every calendar day from start through end (inclusive). A day's
// failure is logged and collected, and processing continues with the next day;
// context cancellation stops the loop between days.
//
// Returns the aggregate of all per-day failures, or nil if every day succeeded.
func (p *Pipeline) Run(ctx context.Context, start, end time.Time) error {
	var result *multierror.Error

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Batch run cancelled before %s.", day.Format("2006-01-02"))
			result = multierror.Append(result, err)
			break
		}

		logger.Infof("Processing %s...", day.Format("2006-01-02"))
		if err := p.ProcessDay(ctx, day); err != nil {
			logger.Errorf("Day %s failed: %v", day.Format("2006-01-02"), err)
			result = multierror.Append(result, err)
			continue
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return exception.New(moduleName, "batch run finished with failed days", err)
	}
	return nil
}
