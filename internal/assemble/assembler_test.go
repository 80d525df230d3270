package assemble_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewaterlab/gemflux/internal/assemble"
	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/interp"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/normalize"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
)

// newTestConfig returns a config with a small native grid (4x5) cropped to 2x3.
func newTestConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Gemflux.Grid = config.GridConfig{
		NativeNY: 4, NativeNX: 5,
		CropJMin: 1, CropJMax: 3,
		CropIMin: 1, CropIMax: 4,
	}
	return cfg
}

func newTestNormalizer(t *testing.T, cfg *config.Config) *normalize.Normalizer {
	t.Helper()
	rules, err := config.BindVariableRules(nil)
	require.NoError(t, err)
	return normalize.NewNormalizer(cfg, rules)
}

// newRawRecord builds a raw hour record on the native grid with constant field
// values, a constant longitude grid, and latitude increasing northward along
// rows so the wind rotation bearing is zero.
func newRawRecord(src assemble.SlotSource, precipAccum float64) *model.HourRecord {
	rec := model.NewHourRecord(src.Valid, src.Cycle, src.LeadHour)
	values := map[string]float64{
		model.RawPressure:    1000,
		model.RawCloud:       0.5,
		model.RawPrecipRate:  0.001,
		model.RawPrecipAccum: precipAccum,
		model.RawSolar:       100,
		model.RawAirTemp:     10,
		model.RawDewPoint:    10,
		model.RawWindU:       1,
		model.RawWindV:       2,
	}
	for name, v := range values {
		grid := sparse.ZerosDense(4, 5)
		for i := range grid.Elements {
			grid.Elements[i] = v
		}
		rec.SetField(name, grid)
	}
	lon := sparse.ZerosDense(4, 5)
	lat := sparse.ZerosDense(4, 5)
	for j := 0; j < 4; j++ {
		for i := 0; i < 5; i++ {
			lon.Set(-123, j, i)
			lat.Set(48+0.01*float64(j), j, i)
		}
	}
	rec.SetField(model.RawLon, lon)
	rec.SetField(model.RawLat, lat)
	return rec
}

// fakeFetcher serves synthetic raw records keyed by slot index. The margin
// hours live at slots -1 and 24.
type fakeFetcher struct {
	records map[int]*model.HourRecord
	errs    map[int]error
}

func (f *fakeFetcher) FetchHour(ctx context.Context, src assemble.SlotSource) (*model.HourRecord, error) {
	if err, ok := f.errs[src.Slot]; ok {
		return nil, err
	}
	if rec, ok := f.records[src.Slot]; ok {
		return rec, nil
	}
	return nil, fs.ErrNotExist
}

// fullDayFetcher returns a fetcher with all 24 slots and both margin hours
// populated. Accumulated precipitation is realistic: one unit per hour since
// the backing cycle's start (3.6 per lead hour before unit conversion), so it
// carries many hours of accumulation at the long lead hours and resets to one
// hour's worth at the cycle boundary.
func fullDayFetcher(day time.Time) *fakeFetcher {
	f := &fakeFetcher{records: map[int]*model.HourRecord{}, errs: map[int]error{}}
	prevSrc, nextSrc := assemble.MarginSources(day, "06")
	for _, src := range append(assemble.Schedule(day, "06"), prevSrc, nextSrc) {
		f.records[src.Slot] = newRawRecord(src, 3.6*float64(src.LeadHour))
	}
	return f
}

func TestAssemble_FullDay(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	asm := assemble.NewAssembler(fullDayFetcher(day), newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	require.Empty(t, seq.EmptySlots())
	require.NotNil(t, seq.Prev)
	require.NotNil(t, seq.Next)
	assert.NoError(t, seq.Validate(2, 3))
}

func TestAssemble_AbsentHourLeavesSlotEmpty(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	delete(f.records, 5)
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, seq.EmptySlots())
}

func TestAssemble_MalformedHourLeavesSlotEmpty(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	// Drop a required variable from one hour.
	delete(f.records[9].Fields, model.RawAirTemp)
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, seq.EmptySlots())
}

func TestAssemble_EntireCycleUnavailable(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	// All hours backed by the previous day's cycle fail to read.
	for slot := -1; slot <= 6; slot++ {
		delete(f.records, slot)
		f.errs[slot] = errors.New("corrupt record block")
	}
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	_, err := asm.Assemble(context.Background(), day)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrSourceUnavailable))
}

func TestAssemble_MissingPrecedingHourFailsDay(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	delete(f.records, -1)
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	_, err := asm.Assemble(context.Background(), day)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrSourceUnavailable))
}

func TestAssemble_MissingFollowingHourTolerated(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	delete(f.records, 24)
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	assert.Nil(t, seq.Next)
}

func TestRepairPrecipCounters_EveryHourDifferenced(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	asm := assemble.NewAssembler(fullDayFetcher(day), newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	require.NoError(t, assemble.RepairPrecipCounters(seq))

	// The accumulation grows by one converted unit per hour, so every slot's
	// published flux must be exactly 1. Slot 0 in particular: its raw field
	// holds 18 hours of accumulation (lead 18) and must be differenced against
	// the preceding margin hour (lead 17), not published as-is.
	for slot := 0; slot < model.HoursPerDay; slot++ {
		precip := seq.Records[slot].Field(model.FieldPrecip)
		require.NotNil(t, precip, "slot %d", slot)
		assert.InDelta(t, 1.0, precip.Get(0, 0), 1e-9, "slot %d", slot)
	}
}

func TestRepairPrecipCounters_ResetBoundaryUsesRawField(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	asm := assemble.NewAssembler(fullDayFetcher(day), newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	require.NoError(t, assemble.RepairPrecipCounters(seq))

	// Slot 7 is the first lead hour of the new cycle: its accumulated total
	// (1.0 converted) is below slot 6's total (24.0 converted), so its raw
	// field is used unmodified.
	assert.InDelta(t, 1.0, seq.Records[7].Field(model.FieldPrecip).Get(0, 0), 1e-9)
}

func TestRepairPrecipCounters_UsesRawEarlierField(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	// Make slot 2 accumulate faster so its difference differs from its
	// successor's; slot 3 must still be differenced against slot 2's raw
	// accumulation, not the already-differenced value.
	for _, src := range assemble.Schedule(day, "06") {
		if src.Slot == 2 {
			f.records[2] = newRawRecord(src, 3.6*19.5) // lead 20, half a unit high
		}
	}
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	require.NoError(t, assemble.RepairPrecipCounters(seq))

	// slot 2 raw accum 19.5, slot 1 (lead 19) raw accum 19.0 -> increment 0.5
	assert.InDelta(t, 0.5, seq.Records[2].Field(model.FieldPrecip).Get(0, 0), 1e-9)
	// slot 3 (lead 21) raw accum 21.0 against slot 2 raw accum 19.5 -> 1.5
	assert.InDelta(t, 1.5, seq.Records[3].Field(model.FieldPrecip).Get(0, 0), 1e-9)
}

func TestRepairPrecipCounters_AfterGapFill(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	delete(f.records, 10)
	delete(f.records, 11)
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	require.NoError(t, interp.NewInterpolator(cfg).FillGaps(seq))
	require.NoError(t, assemble.RepairPrecipCounters(seq))

	// The interpolated slots carry lerped accumulations, so differencing the
	// filled sequence yields the true one-unit increment everywhere, including
	// the slot after the gap. Differencing before gap-filling would leave
	// slot 12 holding a multi-hour difference.
	for _, slot := range []int{9, 10, 11, 12, 13} {
		assert.InDelta(t, 1.0, seq.Records[slot].Field(model.FieldPrecip).Get(0, 0), 1e-9, "slot %d", slot)
	}
}

func TestRepairPrecipCounters_RefusesHoles(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	delete(f.records, 10)
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)

	err = assemble.RepairPrecipCounters(seq)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrUnfillableGap))
}

func TestAssemble_TimestampSnapping(t *testing.T) {
	cfg := newTestConfig()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	f := fullDayFetcher(day)
	// Perturb two timestamps: one a few minutes late, one a few minutes early.
	f.records[3].Timestamp = f.records[3].Timestamp.Add(7 * time.Minute)
	f.records[10].Timestamp = f.records[10].Timestamp.Add(-12 * time.Minute)
	asm := assemble.NewAssembler(f, newTestNormalizer(t, cfg), cfg)

	seq, err := asm.Assemble(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, seq.SlotTime(3), seq.Records[3].Timestamp)
	assert.Equal(t, seq.SlotTime(10), seq.Records[10].Timestamp)
}
