// Package writer persists assembled daily sequences as gridded time-series
// container files, one per calendar day.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"
	"github.com/google/uuid"

	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

const moduleName = "writer"

// timeEpoch is the reference instant for the time coordinate.
var timeEpoch = time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)

// timeUnits is the units attribute of the time coordinate.
const timeUnits = "seconds since 1950-01-01 00:00:00"

// DailyWriter writes one output file per day, named gemflux_y{YYYY}m{MM}d{DD}.nc.
// Output is written to a temporary path in the destination directory and
// renamed into place on success, so downstream consumers never observe a
// partial file.
type DailyWriter struct {
	destDir string
	grid    config.GridConfig
	runID   string
}

// NewDailyWriter creates a new DailyWriter.
func NewDailyWriter(cfg *config.Config) *DailyWriter {
	return &DailyWriter{
		destDir: cfg.Gemflux.Batch.DestDir,
		grid:    cfg.Gemflux.Grid,
		runID:   uuid.NewString(),
	}
}

// OutputName returns the output file name for the given day.
func (w *DailyWriter) OutputName(day time.Time) string {
	return fmt.Sprintf("gemflux_y%dm%02dd%02d.nc", day.Year(), int(day.Month()), day.Day())
}

// WriteDay persists a fully populated daily sequence. It validates the
// post-fill invariants first; a sequence with empty slots, non-contiguous
// timestamps, or off-shape grids is never written.
//
// Returns the final output path.
func (w *DailyWriter) WriteDay(seq *model.DailySequence) (string, error) {
	ny, nx := w.grid.CropNY(), w.grid.CropNX()
	if err := seq.Validate(ny, nx); err != nil {
		return "", exception.NewDayError(moduleName, "daily sequence failed validation", err, seq.Day, -1)
	}

	finalPath := filepath.Join(w.destDir, w.OutputName(seq.Day))
	tmpPath := finalPath + "." + w.runID + ".tmp"

	if err := w.writeFile(tmpPath, seq, ny, nx); err != nil {
		_ = os.Remove(tmpPath)
		return "", exception.NewDayError(moduleName, "failed to write daily file", err, seq.Day, -1)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", exception.NewDayError(moduleName, "failed to move daily file into place", err, seq.Day, -1)
	}
	logger.Infof("Wrote %s (24 records, %dx%d grid).", finalPath, ny, nx)
	return finalPath, nil
}

func (w *DailyWriter) writeFile(path string, seq *model.DailySequence, ny, nx int) error {
	h := cdf.NewHeader(
		[]string{"time_counter", "y", "x"},
		[]int{0, ny, nx})
	h.AddAttribute("", "comment", "Atmospheric forcing assembled from archival forecast extracts")

	h.AddVariable("time_counter", []string{"time_counter"}, []float64{0})
	h.AddAttribute("time_counter", "long_name", "Time axis")
	h.AddAttribute("time_counter", "units", timeUnits)
	h.AddAttribute("time_counter", "calendar", "gregorian")

	h.AddVariable(model.FieldLon, []string{"y", "x"}, []float32{0})
	h.AddAttribute(model.FieldLon, "long_name", "Longitude")
	h.AddAttribute(model.FieldLon, "units", "degrees_east")
	h.AddVariable(model.FieldLat, []string{"y", "x"}, []float32{0})
	h.AddAttribute(model.FieldLat, "long_name", "Latitude")
	h.AddAttribute(model.FieldLat, "units", "degrees_north")

	for _, name := range model.ForcingFieldNames {
		h.AddVariable(name, []string{"time_counter", "y", "x"}, []float32{0})
		attrs := fieldMetadata[name]
		if attrs.level != "" {
			h.AddAttribute(name, "level", attrs.level)
		}
		if attrs.longName != "" {
			h.AddAttribute(name, "long_name", attrs.longName)
		}
		if attrs.standardName != "" {
			h.AddAttribute(name, "standard_name", attrs.standardName)
		}
		if attrs.units != "" {
			h.AddAttribute(name, "units", attrs.units)
		}
		if attrs.comment != "" {
			h.AddAttribute(name, "comment", attrs.comment)
		}
	}
	h.Define()

	ff, err := os.Create(path)
	if err != nil {
		return err
	}
	defer ff.Close()

	f, err := cdf.Create(ff, h) // writes the header to ff
	if err != nil {
		return err
	}

	if err := w.writeCoordinates(f, seq); err != nil {
		return err
	}
	for t, rec := range seq.Records {
		secs := rec.Timestamp.Sub(timeEpoch).Seconds()
		if _, err := f.Writer("time_counter", []int{t}, []int{t + 1}).Write([]float64{secs}); err != nil {
			return fmt.Errorf("failed to write time coordinate at record %d: %w", t, err)
		}
		for _, name := range model.ForcingFieldNames {
			data := rec.Field(name)
			if data == nil {
				return fmt.Errorf("record %d lacks field %s", t, name)
			}
			data32 := make([]float32, len(data.Elements))
			for i, e := range data.Elements {
				data32[i] = float32(e)
			}
			start := []int{t, 0, 0}
			end := []int{t + 1, data.Shape[0], data.Shape[1]}
			if _, err := f.Writer(name, start, end).Write(data32); err != nil {
				return fmt.Errorf("failed to write %s at record %d: %w", name, t, err)
			}
		}
	}

	if err := cdf.UpdateNumRecs(ff); err != nil {
		return err
	}
	if err := ff.Sync(); err != nil {
		return err
	}
	return nil
}

// writeCoordinates writes the static coordinate grids from the first record.
func (w *DailyWriter) writeCoordinates(f *cdf.File, seq *model.DailySequence) error {
	for _, name := range []string{model.FieldLon, model.FieldLat} {
		data := seq.Records[0].Field(name)
		if data == nil {
			return fmt.Errorf("first record lacks coordinate grid %s", name)
		}
		data32 := make([]float32, len(data.Elements))
		for i, e := range data.Elements {
			data32[i] = float32(e)
		}
		end := f.Header.Lengths(name)
		start := make([]int, len(end))
		if _, err := f.Writer(name, start, end).Write(data32); err != nil {
			return fmt.Errorf("failed to write coordinate grid %s: %w", name, err)
		}
	}
	return nil
}
