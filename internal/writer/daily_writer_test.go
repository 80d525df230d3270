package writer_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/writer"
)

func newTestWriter(t *testing.T) (*writer.DailyWriter, string) {
	t.Helper()
	destDir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Gemflux.Batch.DestDir = destDir
	cfg.Gemflux.Grid = config.GridConfig{
		NativeNY: 4, NativeNX: 5,
		CropJMin: 1, CropJMax: 3,
		CropIMin: 1, CropIMax: 4,
	}
	return writer.NewDailyWriter(cfg), destDir
}

func constGrid(v float64) *sparse.DenseArray {
	grid := sparse.ZerosDense(2, 3)
	for i := range grid.Elements {
		grid.Elements[i] = v
	}
	return grid
}

// newSequence builds a fully populated sequence; tair encodes the slot index
// so records can be told apart after a round trip.
func newSequence(t *testing.T) *model.DailySequence {
	t.Helper()
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	seq := model.NewDailySequence(day)
	for slot := 0; slot < model.HoursPerDay; slot++ {
		rec := model.NewHourRecord(seq.SlotTime(slot), "06", 0)
		for _, name := range model.ForcingFieldNames {
			rec.SetField(name, constGrid(1))
		}
		rec.SetField(model.FieldAirTemp, constGrid(273.15+float64(slot)))
		rec.SetField(model.FieldLon, constGrid(-123))
		rec.SetField(model.FieldLat, constGrid(48.5))
		require.NoError(t, rec.MarkNormalized())
		seq.Records[slot] = rec
	}
	return seq
}

func TestOutputName(t *testing.T) {
	w, _ := newTestWriter(t)
	day := time.Date(2011, 9, 27, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "gemflux_y2011m09d27.nc", w.OutputName(day))
}

func TestWriteDay_RoundTrip(t *testing.T) {
	w, destDir := newTestWriter(t)
	seq := newSequence(t)

	path, err := w.WriteDay(seq)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "gemflux_y2011m09d27.nc"), path)

	ff, err := os.Open(path)
	require.NoError(t, err)
	defer ff.Close()
	f, err := cdf.Open(ff)
	require.NoError(t, err)

	// Time axis: 24 records, hourly, starting at 18:00 of the previous day.
	// time_counter is the record (unlimited) dimension, so the header stores
	// length 0; the record count comes from the file size.
	fi, err := ff.Stat()
	require.NoError(t, err)
	require.EqualValues(t, model.HoursPerDay, f.Header.NumRecs(fi.Size()))
	times := make([]float64, model.HoursPerDay)
	r := f.Reader("time_counter", []int{0}, []int{model.HoursPerDay})
	_, err = r.Read(times)
	require.NoError(t, err)

	epoch := time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)
	wantStart := seq.SpanStart().Sub(epoch).Seconds()
	assert.InDelta(t, wantStart, times[0], 1e-6)
	for i := 1; i < model.HoursPerDay; i++ {
		assert.InDelta(t, 3600.0, times[i]-times[i-1], 1e-6, "record %d", i)
	}

	// A per-record field reads back with the encoded slot value.
	buf := make([]float32, 2*3)
	_, err = f.Reader(model.FieldAirTemp, []int{5, 0, 0}, []int{6, 2, 3}).Read(buf)
	require.NoError(t, err)
	assert.InDelta(t, 273.15+5, float64(buf[0]), 1e-3)

	// Coordinate grids are static.
	_, err = f.Reader(model.FieldLat, []int{0, 0}, []int{2, 3}).Read(buf)
	require.NoError(t, err)
	assert.InDelta(t, 48.5, float64(buf[0]), 1e-3)

	// Variable metadata survives.
	assert.Equal(t, "seconds since 1950-01-01 00:00:00", attrString(t, f, "time_counter", "units"))
	assert.NotEmpty(t, attrString(t, f, model.FieldAirTemp, "units"))
}

func attrString(t *testing.T, f *cdf.File, varName, attr string) string {
	t.Helper()
	v := f.Header.GetAttribute(varName, attr)
	s, ok := v.(string)
	require.True(t, ok, "%s:%s is not a string", varName, attr)
	return s
}

func TestWriteDay_RejectsIncompleteSequence(t *testing.T) {
	w, destDir := newTestWriter(t)
	seq := newSequence(t)
	seq.Records[4] = nil

	_, err := w.WriteDay(seq)
	require.Error(t, err)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file may exist for a failed day")
}

func TestWriteDay_RejectsWrongShape(t *testing.T) {
	w, destDir := newTestWriter(t)
	seq := newSequence(t)
	seq.Records[7].SetField(model.FieldSolar, sparse.ZerosDense(3, 3))

	_, err := w.WriteDay(seq)
	require.Error(t, err)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteDay_LeavesNoTempFiles(t *testing.T) {
	w, destDir := newTestWriter(t)

	_, err := w.WriteDay(newSequence(t))
	require.NoError(t, err)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "gemflux_y2011m09d27.nc", entries[0].Name())
}
