package assemble

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/ctessum/sparse"

	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/normalize"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

const moduleName = "assemble"

// HourFetcher retrieves one raw forecast-hour record.
// Implementations return an error wrapping fs.ErrNotExist when the source file
// is absent, which the assembler treats as an empty slot rather than a failure.
type HourFetcher interface {
	FetchHour(ctx context.Context, src SlotSource) (*model.HourRecord, error)
}

// Assembler builds daily sequences. It fetches and normalizes each slot's hour
// plus the two margin hours bounding the span, and snaps record timestamps to
// exact hour boundaries.
type Assembler struct {
	fetcher    HourFetcher
	normalizer *normalize.Normalizer
	cycle      string
}

// NewAssembler creates a new Assembler.
func NewAssembler(fetcher HourFetcher, normalizer *normalize.Normalizer, cfg *config.Config) *Assembler {
	return &Assembler{
		fetcher:    fetcher,
		normalizer: normalizer,
		cycle:      cfg.Gemflux.Source.Cycle,
	}
}

// Assemble builds the daily sequence for the given target day.
//
// Absent source hours leave their slot empty; that is the expected, common case
// the gap interpolator resolves. Malformed hours are logged and likewise leave
// an empty slot. If every slot backed by one forecast cycle failed to load, the
// whole day fails with ErrSourceUnavailable. The preceding margin hour is
// required: the first slot's precipitation differencing and solar smoothing
// read it, so a day without it also fails with ErrSourceUnavailable.
func (a *Assembler) Assemble(ctx context.Context, day time.Time) (*model.DailySequence, error) {
	seq := model.NewDailySequence(day)
	sources := Schedule(day, a.cycle)

	// Track per-cycle-file-date slot outcomes for whole-cycle failure detection.
	// Margin hours are not counted.
	attempted := map[time.Time]int{}
	failed := map[time.Time]int{}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, exception.NewDayError(moduleName, "assembly cancelled", err, day, src.Slot)
		}
		attempted[src.FileDate]++

		rec, err := a.fetcher.FetchHour(ctx, src)
		if err != nil {
			failed[src.FileDate]++
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debugf("Hour %s (%s%s lead %03d) absent, leaving slot %d empty.",
					src.Valid.Format("2006-01-02 15:04"), src.FileDate.Format("20060102"), src.Cycle, src.LeadHour, src.Slot)
			} else {
				logger.Warnf("Hour %s (%s%s lead %03d) unreadable, leaving slot %d empty: %v",
					src.Valid.Format("2006-01-02 15:04"), src.FileDate.Format("20060102"), src.Cycle, src.LeadHour, src.Slot, err)
			}
			continue
		}

		normalized, err := a.normalizer.Normalize(rec)
		if err != nil {
			failed[src.FileDate]++
			if errors.Is(err, exception.ErrMalformedInput) {
				logger.Warnf("Hour %s failed normalization, leaving slot %d empty: %v",
					src.Valid.Format("2006-01-02 15:04"), src.Slot, err)
				continue
			}
			return nil, exception.NewDayError(moduleName, "normalization failed", err, day, src.Slot)
		}
		seq.Records[src.Slot] = normalized
	}

	for fileDate, n := range attempted {
		if failed[fileDate] == n {
			return nil, exception.NewDayError(moduleName,
				"entire "+fileDate.Format("20060102")+a.cycle+" forecast cycle unavailable",
				exception.ErrSourceUnavailable, day, -1)
		}
	}

	prevSrc, nextSrc := MarginSources(day, a.cycle)
	seq.Prev = a.fetchMargin(ctx, prevSrc)
	seq.Next = a.fetchMargin(ctx, nextSrc)
	if seq.Prev == nil {
		return nil, exception.NewDayError(moduleName,
			"hour preceding the daily span unavailable",
			exception.ErrSourceUnavailable, day, -1)
	}

	snapTimestamps(seq)

	return seq, nil
}

// fetchMargin fetches and normalizes one margin hour, returning nil when the
// hour cannot be loaded.
func (a *Assembler) fetchMargin(ctx context.Context, src SlotSource) *model.HourRecord {
	rec, err := a.fetcher.FetchHour(ctx, src)
	if err != nil {
		logger.Debugf("Margin hour %s (%s%s lead %03d) unavailable: %v",
			src.Valid.Format("2006-01-02 15:04"), src.FileDate.Format("20060102"), src.Cycle, src.LeadHour, err)
		return nil
	}
	normalized, err := a.normalizer.Normalize(rec)
	if err != nil {
		logger.Warnf("Margin hour %s failed normalization: %v", src.Valid.Format("2006-01-02 15:04"), err)
		return nil
	}
	return normalized
}

// RepairPrecipCounters converts the accumulated precipitation field into
// per-hour increments. Within a forecast cycle the field is a running total
// that resets to zero when a new cycle starts. Every slot is differenced
// against the preceding real-world hour, the first slot against the Prev
// margin, so the published flux is a true per-hour amount everywhere. For each
// pair the domain-sums of the raw fields decide the branch: a growing total
// means the later hour is still accumulating and the earlier raw field is
// subtracted pointwise; a non-growing total signals a counter reset, and the
// later hour's raw field already is its own per-hour amount.
//
// Each pair is judged against raw (undifferenced) fields, so results never
// cascade. The sequence must be gap-filled first: differencing an interpolated
// accumulation against its neighbours yields consistent increments, while a
// hole would leave the following slot's raw total unpaired.
func RepairPrecipCounters(seq *model.DailySequence) error {
	if seq.Prev == nil {
		return exception.NewDayError(moduleName,
			"hour preceding the daily span unavailable for precipitation differencing",
			exception.ErrSourceUnavailable, seq.Day, -1)
	}

	// Snapshot the raw accumulations and their domain-sums before any slot is
	// overwritten. Index 0 holds the Prev margin, 1..24 the day's slots.
	raw := make([]*sparse.DenseArray, model.HoursPerDay+1)
	sums := make([]float64, model.HoursPerDay+1)
	raw[0] = seq.Prev.Field(model.FieldPrecip)
	sums[0] = seq.Prev.DomainSum(model.FieldPrecip)
	for slot, rec := range seq.Records {
		if rec != nil {
			raw[slot+1] = rec.Field(model.FieldPrecip)
			sums[slot+1] = rec.DomainSum(model.FieldPrecip)
		}
	}

	for i := 1; i <= model.HoursPerDay; i++ {
		if raw[i] == nil || raw[i-1] == nil {
			return exception.NewDayError(moduleName,
				"precipitation differencing requires a fully populated sequence",
				exception.ErrUnfillableGap, seq.Day, i-1)
		}
		if sums[i] > sums[i-1] {
			diff := raw[i].Copy()
			for j, v := range raw[i-1].Elements {
				diff.Elements[j] -= v
			}
			seq.Records[i-1].SetField(model.FieldPrecip, diff)
			logger.Debugf("Slot %d precipitation differenced against the preceding hour.", i-1)
		} else {
			// Counter reset at the cycle boundary: the later raw field already
			// is its own per-hour amount.
			logger.Debugf("Slot %d precipitation counter reset detected, using raw field.", i-1)
		}
	}
	return nil
}

// snapTimestamps rounds each record's timestamp to the nearest top-of-hour,
// correcting minor offsets introduced by upstream averaging. Round-to-nearest,
// not truncation.
func snapTimestamps(seq *model.DailySequence) {
	recs := append([]*model.HourRecord{seq.Prev, seq.Next}, seq.Records[:]...)
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		snapped := rec.Timestamp.Round(time.Hour)
		if !snapped.Equal(rec.Timestamp) {
			logger.Debugf("Snapped timestamp %s to %s.", rec.Timestamp.Format(time.RFC3339), snapped.Format(time.RFC3339))
			rec.Timestamp = snapped
		}
	}
}
