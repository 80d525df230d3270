// Package interp fills missing hour slots and missing-variable placeholder
// grids in an assembled daily sequence by linear interpolation in time.
package interp

import (
	"github.com/ctessum/sparse"

	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

const moduleName = "interp"

// Interpolator fills gaps in daily sequences. Interpolation is linear in time,
// per field, per grid cell, between the nearest populated slot on each side of
// a gap.
type Interpolator struct {
	maxGapHours int
}

// NewInterpolator creates a new Interpolator.
func NewInterpolator(cfg *config.Config) *Interpolator {
	return &Interpolator{maxGapHours: cfg.Gemflux.Batch.MaxGapHours}
}

// FillGaps fills every empty slot of the sequence. Each contiguous run of
// missing slots is handled independently. A run touching the start or end of
// the span is bounded by the Prev or Next margin hour; with no margin on that
// side the run has no bound and fails with ErrUnfillableGap, as does a run
// longer than the configured maximum.
//
// A variable carried as a NaN placeholder by either bounding record is not
// interpolated; the synthesized record carries its own placeholder and lists
// the variable in MissingVars, so a later FillMissingVars pass resolves it
// from records with real values.
func (ip *Interpolator) FillGaps(seq *model.DailySequence) error {
	slot := 0
	for slot < model.HoursPerDay {
		if !seq.Empty(slot) {
			slot++
			continue
		}
		runStart := slot
		for slot < model.HoursPerDay && seq.Empty(slot) {
			slot++
		}
		runEnd := slot // exclusive

		prev := seq.Prev
		if runStart > 0 {
			prev = seq.Records[runStart-1]
		}
		next := seq.Next
		if runEnd < model.HoursPerDay {
			next = seq.Records[runEnd]
		}
		if prev == nil || next == nil {
			return exception.NewDayError(moduleName,
				"missing-hour run has no bounding hour on one side of the daily span",
				exception.ErrUnfillableGap, seq.Day, runStart)
		}
		if runLen := runEnd - runStart; runLen > ip.maxGapHours {
			return exception.NewDayError(moduleName,
				"missing-hour run exceeds interpolation bound",
				exception.ErrUnfillableGap, seq.Day, runStart)
		}

		logger.Infof("Interpolating %d missing hour(s) for %s between %s and %s.",
			runEnd-runStart, seq.Day.Format("2006-01-02"),
			prev.Timestamp.Format("15:04"), next.Timestamp.Format("15:04"))

		prevIdx, nextIdx := runStart-1, runEnd
		for s := runStart; s < runEnd; s++ {
			frac := float64(s-prevIdx) / float64(nextIdx-prevIdx)
			rec := model.NewHourRecord(seq.SlotTime(s), prev.Cycle, 0)
			for name, prevData := range prev.Fields {
				nextData := next.Field(name)
				if nextData == nil {
					continue
				}
				if prev.IsVarMissing(name) || next.IsVarMissing(name) {
					rec.SetField(name, model.NaNGrid(prevData.Shape[0], prevData.Shape[1]))
					rec.MissingVars = append(rec.MissingVars, name)
					continue
				}
				rec.SetField(name, lerp(prevData, nextData, frac))
			}
			if err := rec.MarkNormalized(); err != nil {
				return exception.NewDayError(moduleName, "failed to mark interpolated record", err, seq.Day, s)
			}
			seq.Records[s] = rec
		}
	}
	return nil
}

// FillMissingVars fills NaN placeholder grids for variables that were absent
// from some source files, interpolating only the affected variables between the
// nearest records carrying real values. A placeholder with no real value on one
// side of it fails with ErrUnfillableGap.
func (ip *Interpolator) FillMissingVars(seq *model.DailySequence) error {
	for slot, rec := range seq.Records {
		if rec == nil || len(rec.MissingVars) == 0 {
			continue
		}
		vars := append([]string(nil), rec.MissingVars...)
		for _, name := range vars {
			prevSlot := slot - 1
			for prevSlot >= 0 && (seq.Records[prevSlot] == nil || seq.Records[prevSlot].IsVarMissing(name)) {
				prevSlot--
			}
			nextSlot := slot + 1
			for nextSlot < model.HoursPerDay && (seq.Records[nextSlot] == nil || seq.Records[nextSlot].IsVarMissing(name)) {
				nextSlot++
			}
			if prevSlot < 0 || nextSlot >= model.HoursPerDay {
				return exception.NewDayError(moduleName,
					"variable "+name+" has no populated neighbour to interpolate from",
					exception.ErrUnfillableGap, seq.Day, slot)
			}
			prev := seq.Records[prevSlot]
			next := seq.Records[nextSlot]
			frac := float64(slot-prevSlot) / float64(nextSlot-prevSlot)
			rec.SetField(name, lerp(prev.Field(name), next.Field(name), frac))
			rec.ClearVarMissing(name)
			logger.Debugf("Filled missing variable %s at slot %d from slots %d and %d.", name, slot, prevSlot, nextSlot)
		}
	}
	return nil
}

// lerp returns prev + frac*(next-prev), per grid cell.
func lerp(prev, next *sparse.DenseArray, frac float64) *sparse.DenseArray {
	out := sparse.ZerosDense(prev.Shape...)
	for i, pv := range prev.Elements {
		out.Elements[i] = pv + frac*(next.Elements[i]-pv)
	}
	return out
}
