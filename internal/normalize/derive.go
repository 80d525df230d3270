package normalize

import (
	"math"

	"github.com/ctessum/sparse"

	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

// stefanBoltzmann is the Stefan-Boltzmann constant [W m-2 K-4].
const stefanBoltzmann = 5.6697e-8

// deriveHumidityAndLongwave computes specific humidity, relative humidity, and
// incoming longwave radiation from dew point, air temperature, sea level
// pressure, and cloud fraction.
//
// Humidity follows the WMO saturation vapour pressure correlation over the dew
// point; longwave combines the Dilley clear-sky correlation with the Unsworth
// cloud correction. If the dew point was absent from the source file the three
// derived fields are carried as NaN placeholders and marked missing, to be
// filled by cross-record interpolation.
func (n *Normalizer) deriveHumidityAndLongwave(rec *model.HourRecord, cropped map[string]*sparse.DenseArray, out *model.HourRecord) {
	ny, nx := n.grid.CropNY(), n.grid.CropNX()

	// The dew point is an intermediate, not an output variable.
	dewName := n.rules[model.RawDewPoint].Rename
	if dewName == "" {
		dewName = model.RawDewPoint
	}
	delete(out.Fields, dewName)

	if out.IsVarMissing(dewName) {
		out.ClearVarMissing(dewName)
		logger.Debugf("Dew point absent at %s, marking derived humidity and longwave fields missing.",
			rec.Timestamp.Format("2006-01-02 15:04"))
		for _, name := range []string{model.FieldHumidity, model.FieldRelHum, model.FieldLongwave} {
			out.SetField(name, model.NaNGrid(ny, nx))
			out.MissingVars = append(out.MissingVars, name)
		}
		return
	}

	dewPoint := cropped[model.RawDewPoint] // degC
	airTemp := out.Field(model.FieldAirTemp)
	pressure := out.Field(model.FieldPressure)
	cloud := out.Field(model.FieldCloud)

	qair := sparse.ZerosDense(ny, nx)
	relHum := sparse.ZerosDense(ny, nx)
	longwave := sparse.ZerosDense(ny, nx)

	for i := range dewPoint.Elements {
		td := dewPoint.Elements[i]
		tk := airTemp.Elements[i]
		pa := pressure.Elements[i]
		nt := cloud.Elements[i]

		// Saturation water vapour pressure at the dew point in the pure phase,
		// which within 0.5% is that of moist air [hPa].
		ew := 6.112 * math.Exp(17.62*td/(243.12+td))
		xvw := ew / (0.01 * pa)
		r := 0.62198 * xvw / (1 - xvw)
		qair.Elements[i] = r / (1 + r)

		// Saturation water vapour pressure at the current temperature.
		tc := tk - 273.15
		et := 6.112 * math.Exp(17.62*tc/(243.12+tc))
		relHum.Elements[i] = 100 * ew / et

		// Dilley clear-sky longwave, Unsworth cloud correction.
		ewKPa := ew / 10.0
		w := 465 * ewKPa / tk
		lclr := 59.38 + 113.7*math.Pow(tk/273.16, 6) + 96.96*math.Sqrt(w/2.5)
		eclr := lclr / (stefanBoltzmann * math.Pow(tk, 4))
		ewc := (1-0.84*nt)*eclr + 0.84*nt
		longwave.Elements[i] = ewc * stefanBoltzmann * math.Pow(tk, 4)
	}

	out.SetField(model.FieldHumidity, qair)
	out.SetField(model.FieldRelHum, relHum)
	out.SetField(model.FieldLongwave, longwave)
}

// rotateWinds rotates the grid-relative wind components to true east/north
// using the local bearing of the grid's y axis, derived from the coordinate
// grids. The bearing of the last row is carried from its neighbour.
func (n *Normalizer) rotateWinds(out *model.HourRecord, lon, lat *sparse.DenseArray) {
	u := out.Field(model.FieldWindU)
	v := out.Field(model.FieldWindV)
	if u == nil || v == nil {
		return
	}
	ny, nx := n.grid.CropNY(), n.grid.CropNX()

	uOut := sparse.ZerosDense(ny, nx)
	vOut := sparse.ZerosDense(ny, nx)
	for j := 0; j < ny; j++ {
		jn := j
		if jn == ny-1 {
			jn = ny - 2
		}
		for i := 0; i < nx; i++ {
			latRad := lat.Get(jn, i) * math.Pi / 180
			dLat := lat.Get(jn+1, i) - lat.Get(jn, i)
			dLon := (lon.Get(jn+1, i) - lon.Get(jn, i)) * math.Cos(latRad)
			bearing := math.Atan2(dLon, dLat)

			sinB, cosB := math.Sin(bearing), math.Cos(bearing)
			ug := u.Get(j, i)
			vg := v.Get(j, i)
			uOut.Set(ug*cosB+vg*sinB, j, i)
			vOut.Set(vg*cosB-ug*sinB, j, i)
		}
	}
	out.SetField(model.FieldWindU, uOut)
	out.SetField(model.FieldWindV, vOut)
}
