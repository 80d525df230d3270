package normalize_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/normalize"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
)

// Native 4x5 grid cropped to 2x3: rows [1,3), columns [1,4).
func newTestConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Gemflux.Grid = config.GridConfig{
		NativeNY: 4, NativeNX: 5,
		CropJMin: 1, CropJMax: 3,
		CropIMin: 1, CropIMax: 4,
	}
	return cfg
}

func newNormalizer(t *testing.T) *normalize.Normalizer {
	t.Helper()
	rules, err := config.BindVariableRules(nil)
	require.NoError(t, err)
	return normalize.NewNormalizer(newTestConfig(), rules)
}

func constGrid(ny, nx int, v float64) *sparse.DenseArray {
	grid := sparse.ZerosDense(ny, nx)
	for i := range grid.Elements {
		grid.Elements[i] = v
	}
	return grid
}

// newRawRecord builds a complete raw record on the native 4x5 grid with
// latitude increasing northward along rows and constant longitude, so the wind
// rotation bearing is zero everywhere.
func newRawRecord() *model.HourRecord {
	rec := model.NewHourRecord(time.Date(2011, 9, 27, 3, 0, 0, 0, time.UTC), "06", 21)
	for name, v := range map[string]float64{
		model.RawPressure:    1000,
		model.RawCloud:       0.5,
		model.RawPrecipRate:  0.001,
		model.RawPrecipAccum: 3.6,
		model.RawSolar:       100,
		model.RawAirTemp:     10,
		model.RawDewPoint:    10,
		model.RawWindU:       1,
		model.RawWindV:       2,
	} {
		rec.SetField(name, constGrid(4, 5, v))
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

func TestNormalize_UnitConversions(t *testing.T) {
	out, err := newNormalizer(t).Normalize(newRawRecord())
	require.NoError(t, err)

	// 1000 mb -> 100000 Pa
	assert.InDelta(t, 100000.0, out.Field(model.FieldPressure).Get(0, 0), 1e-9)
	// 10 degC -> 283.15 K
	assert.InDelta(t, 283.15, out.Field(model.FieldAirTemp).Get(0, 0), 1e-9)
	// 0.001 m/s -> 1.0 kg m-2 s-1
	assert.InDelta(t, 1.0, out.Field(model.FieldPrecipRate).Get(0, 0), 1e-9)
	// 3.6 m/hr accumulation -> 1.0 kg m-2 s-1
	assert.InDelta(t, 1.0, out.Field(model.FieldPrecip).Get(0, 0), 1e-9)
	// Cloud fraction and shortwave flux pass through unchanged.
	assert.InDelta(t, 0.5, out.Field(model.FieldCloud).Get(0, 0), 1e-9)
	assert.InDelta(t, 100.0, out.Field(model.FieldSolar).Get(0, 0), 1e-9)
	// 1 knot -> 0.514444 m/s, zero-bearing grid leaves components unrotated.
	assert.InDelta(t, 0.514444, out.Field(model.FieldWindU).Get(0, 0), 1e-9)
	assert.InDelta(t, 1.028888, out.Field(model.FieldWindV).Get(0, 0), 1e-9)
}

func TestNormalize_CropsToConfiguredWindow(t *testing.T) {
	rec := newRawRecord()
	// Encode the native cell position in the temperature field to pin the
	// crop origin down: value at (j,i) is 10*j+i.
	temp := sparse.ZerosDense(4, 5)
	for j := 0; j < 4; j++ {
		for i := 0; i < 5; i++ {
			temp.Set(float64(10*j+i), j, i)
		}
	}
	rec.SetField(model.RawAirTemp, temp)

	out, err := newNormalizer(t).Normalize(rec)
	require.NoError(t, err)

	tair := out.Field(model.FieldAirTemp)
	require.Equal(t, []int{2, 3}, tair.Shape)
	// Cropped (0,0) maps to native (1,1); the TT rule adds 273.15.
	assert.InDelta(t, 11+273.15, tair.Get(0, 0), 1e-9)
	assert.InDelta(t, 23+273.15, tair.Get(1, 2), 1e-9)

	for _, name := range model.ForcingFieldNames {
		assert.Equal(t, []int{2, 3}, out.Field(name).Shape, name)
	}
}

func TestNormalize_DerivedHumidityAndLongwave(t *testing.T) {
	out, err := newNormalizer(t).Normalize(newRawRecord())
	require.NoError(t, err)

	// Dew point equal to air temperature means saturation: RH is exactly 100.
	assert.InDelta(t, 100.0, out.Field(model.FieldRelHum).Get(0, 0), 1e-9)

	// Specific humidity at 10 degC dew point and 1000 mb is about 7.7 g/kg.
	assert.InDelta(t, 0.0077, out.Field(model.FieldHumidity).Get(0, 0), 5e-4)

	// Half cloud cover at 10 degC: incoming longwave lands in the usual
	// temperate-marine range.
	lw := out.Field(model.FieldLongwave).Get(0, 0)
	assert.Greater(t, lw, 250.0)
	assert.Less(t, lw, 400.0)

	// The dew point is consumed by the derivation, not written out.
	assert.False(t, out.HasField("dewpoint"))
}

func TestNormalize_MissingDewPointMarksDerivedFields(t *testing.T) {
	rec := newRawRecord()
	delete(rec.Fields, model.RawDewPoint)

	out, err := newNormalizer(t).Normalize(rec)
	require.NoError(t, err)

	for _, name := range []string{model.FieldHumidity, model.FieldRelHum, model.FieldLongwave} {
		assert.True(t, out.IsVarMissing(name), name)
		assert.True(t, math.IsNaN(out.Field(name).Get(0, 0)), name)
	}
	assert.False(t, out.IsVarMissing("dewpoint"))
	// Everything else is unaffected.
	assert.InDelta(t, 283.15, out.Field(model.FieldAirTemp).Get(0, 0), 1e-9)
}

func TestNormalize_WindRotation(t *testing.T) {
	rec := newRawRecord()
	// Constant latitude with longitude increasing along +y: the grid's y axis
	// points due east (bearing 90 deg), so u_east = v_grid and v_north = -u_grid.
	lon := sparse.ZerosDense(4, 5)
	lat := sparse.ZerosDense(4, 5)
	for j := 0; j < 4; j++ {
		for i := 0; i < 5; i++ {
			lon.Set(float64(j), j, i)
			lat.Set(0, j, i)
		}
	}
	rec.SetField(model.RawLon, lon)
	rec.SetField(model.RawLat, lat)

	out, err := newNormalizer(t).Normalize(rec)
	require.NoError(t, err)

	assert.InDelta(t, 1.028888, out.Field(model.FieldWindU).Get(0, 0), 1e-9)
	assert.InDelta(t, -0.514444, out.Field(model.FieldWindV).Get(0, 0), 1e-9)
}

func TestNormalize_RequiredVariableAbsent(t *testing.T) {
	rec := newRawRecord()
	delete(rec.Fields, model.RawPressure)

	_, err := newNormalizer(t).Normalize(rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrMalformedInput))
}

func TestNormalize_ShapeMismatch(t *testing.T) {
	rec := newRawRecord()
	rec.SetField(model.RawSolar, sparse.ZerosDense(3, 5))

	_, err := newNormalizer(t).Normalize(rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrMalformedInput))
}

func TestNormalize_RefusesSecondPass(t *testing.T) {
	n := newNormalizer(t)
	out, err := n.Normalize(newRawRecord())
	require.NoError(t, err)

	_, err = n.Normalize(out)
	require.Error(t, err)
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	rec := newRawRecord()
	_, err := newNormalizer(t).Normalize(rec)
	require.NoError(t, err)

	assert.InDelta(t, 1000.0, rec.Field(model.RawPressure).Get(0, 0), 1e-9)
	assert.InDelta(t, 10.0, rec.Field(model.RawAirTemp).Get(0, 0), 1e-9)
	assert.False(t, rec.Normalized())
}
