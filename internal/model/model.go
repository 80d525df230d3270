// Package model defines the in-memory data model for the gemflux pipeline:
// one forecast hour's gridded fields, and the ordered 24-hour sequence a
// calendar day is assembled from.
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// Raw field names as they appear in decoded forecast-hour files.
const (
	RawPressure    = "PN" // sea level pressure [mb]
	RawCloud       = "NT" // cloud fraction [0..1]
	RawPrecipRate  = "RT" // instantaneous precipitation rate [m/s]
	RawPrecipAccum = "PR" // accumulated precipitation [m]
	RawSolar       = "FB" // downward shortwave flux [W/m^2]
	RawAirTemp     = "TT" // air temperature [degC]
	RawDewPoint    = "TD" // dew point temperature [degC]
	RawWindU       = "UU" // grid-relative u wind [knots]
	RawWindV       = "VV" // grid-relative v wind [knots]
	RawLon         = "nav_lon"
	RawLat         = "nav_lat"
)

// Forcing field names written to daily output files.
const (
	FieldPressure   = "atmpres"
	FieldCloud      = "percentcloud"
	FieldPrecipRate = "PRATE_surface"
	FieldPrecip     = "precip"
	FieldSolar      = "solar"
	FieldAirTemp    = "tair"
	FieldHumidity   = "qair"
	FieldRelHum     = "RH_2maboveground"
	FieldLongwave   = "therm_rad"
	FieldWindU      = "u_wind"
	FieldWindV      = "v_wind"
	FieldLon        = "nav_lon"
	FieldLat        = "nav_lat"
)

// RawFieldNames lists the physical variables expected in every decoded hour file,
// in a stable order. Coordinate grids are handled separately.
var RawFieldNames = []string{
	RawPressure, RawCloud, RawPrecipRate, RawPrecipAccum, RawSolar,
	RawAirTemp, RawDewPoint, RawWindU, RawWindV,
}

// ForcingFieldNames lists the time-varying variables of a normalized record,
// in the order they are laid out in daily output files.
var ForcingFieldNames = []string{
	FieldPressure, FieldCloud, FieldPrecipRate, FieldPrecip, FieldSolar,
	FieldAirTemp, FieldHumidity, FieldRelHum, FieldLongwave, FieldWindU, FieldWindV,
}

// HourRecord holds one forecast hour's gridded data.
// All fields in one record share an identical 2-D grid shape.
type HourRecord struct {
	// Timestamp is the absolute hour (calendar date + hour-of-day), the logical key.
	Timestamp time.Time
	// Cycle is the forecast run that produced this hour (e.g. "06").
	Cycle string
	// LeadHour is hours since the cycle's start (1..24).
	LeadHour int
	// Fields maps variable names to 2-D grids.
	Fields map[string]*sparse.DenseArray
	// MissingVars lists optional variables that were absent from the source file
	// and carried as NaN placeholder grids, to be filled by interpolation later.
	MissingVars []string

	normalized bool
}

// NewHourRecord creates an empty HourRecord for the given timestamp and provenance.
func NewHourRecord(ts time.Time, cycle string, leadHour int) *HourRecord {
	return &HourRecord{
		Timestamp: ts,
		Cycle:     cycle,
		LeadHour:  leadHour,
		Fields:    make(map[string]*sparse.DenseArray),
	}
}

// Field returns the named grid, or nil if absent.
func (r *HourRecord) Field(name string) *sparse.DenseArray {
	return r.Fields[name]
}

// SetField stores a grid under the given name.
func (r *HourRecord) SetField(name string, data *sparse.DenseArray) {
	r.Fields[name] = data
}

// HasField reports whether the named grid is present.
func (r *HourRecord) HasField(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// IsVarMissing reports whether the named variable was absent from the source file
// and is currently a NaN placeholder.
func (r *HourRecord) IsVarMissing(name string) bool {
	for _, v := range r.MissingVars {
		if v == name {
			return true
		}
	}
	return false
}

// ClearVarMissing removes the named variable from the missing set, typically after
// its placeholder grid has been filled by interpolation.
func (r *HourRecord) ClearVarMissing(name string) {
	out := r.MissingVars[:0]
	for _, v := range r.MissingVars {
		if v != name {
			out = append(out, v)
		}
	}
	r.MissingVars = out
}

// Normalized reports whether unit normalization has already been applied.
// Normalization must run exactly once per record.
func (r *HourRecord) Normalized() bool {
	return r.normalized
}

// MarkNormalized flags the record as normalized. It returns an error if the
// record was already normalized, guarding against double unit conversion.
func (r *HourRecord) MarkNormalized() error {
	if r.normalized {
		return fmt.Errorf("hour record %s already normalized", r.Timestamp.Format(time.RFC3339))
	}
	r.normalized = true
	return nil
}

// DomainSum returns the sum of the named field over every grid cell.
// NaN cells are skipped. Returns 0 if the field is absent.
func (r *HourRecord) DomainSum(name string) float64 {
	data := r.Fields[name]
	if data == nil {
		return 0
	}
	var sum float64
	for _, v := range data.Elements {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}

// CheckShape verifies that every field matches the given grid shape.
func (r *HourRecord) CheckShape(ny, nx int) error {
	for name, data := range r.Fields {
		if len(data.Shape) != 2 || data.Shape[0] != ny || data.Shape[1] != nx {
			return fmt.Errorf("field %s has shape %v, want [%d %d]", name, data.Shape, ny, nx)
		}
	}
	return nil
}

// HoursPerDay is the length of one assembled daily sequence.
const HoursPerDay = 24

// DailySequence is the ordered sequence of 24 HourRecords for one calendar day,
// indexed by slot 0..23. Under the 18:00 convention the sequence starts at hour
// 18 of the previous calendar day and ends at hour 17 of the target day.
// Slots may be nil (missing hour) before gap-filling; all must be populated after.
//
// Prev and Next are margin hours bounding the span (17:00 of the previous day
// and 18:00 of the target day). They are never written to output; they bound
// gap interpolation at the span edges and supply the hour the first slot's
// precipitation differencing and solar smoothing difference against.
type DailySequence struct {
	// Day is the target calendar day (midnight, UTC).
	Day time.Time
	// Records holds the hour slots in span order.
	Records [HoursPerDay]*HourRecord
	// Prev is the hour immediately preceding slot 0, at SlotTime(-1).
	Prev *HourRecord
	// Next is the hour immediately following slot 23, at SlotTime(24), or nil.
	Next *HourRecord
}

// NewDailySequence creates an empty sequence for the given day.
func NewDailySequence(day time.Time) *DailySequence {
	return &DailySequence{Day: day.Truncate(24 * time.Hour)}
}

// SpanStart returns the real-world timestamp of slot 0 (18:00 of the previous day).
func (s *DailySequence) SpanStart() time.Time {
	return s.Day.Add(-6 * time.Hour)
}

// SlotTime returns the nominal real-world timestamp of the given slot.
// Slots -1 and 24 address the Prev and Next margin hours.
func (s *DailySequence) SlotTime(slot int) time.Time {
	return s.SpanStart().Add(time.Duration(slot) * time.Hour)
}

// Empty reports whether the given slot has no record.
func (s *DailySequence) Empty(slot int) bool {
	return s.Records[slot] == nil
}

// EmptySlots returns the indices of all unpopulated slots, in order.
func (s *DailySequence) EmptySlots() []int {
	var out []int
	for i, rec := range s.Records {
		if rec == nil {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks the post-fill invariant: every slot populated, timestamps
// contiguous and hourly, all grids sharing the given shape.
func (s *DailySequence) Validate(ny, nx int) error {
	for i, rec := range s.Records {
		if rec == nil {
			return fmt.Errorf("slot %d is empty", i)
		}
		if want := s.SlotTime(i); !rec.Timestamp.Equal(want) {
			return fmt.Errorf("slot %d timestamp %s, want %s", i, rec.Timestamp.Format(time.RFC3339), want.Format(time.RFC3339))
		}
		if err := rec.CheckShape(ny, nx); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return nil
}

// NaNGrid returns a ny-by-nx grid with every cell set to NaN, used as a
// placeholder for variables absent from a source file.
func NaNGrid(ny, nx int) *sparse.DenseArray {
	data := sparse.ZerosDense(ny, nx)
	for i := range data.Elements {
		data.Elements[i] = math.NaN()
	}
	return data
}
