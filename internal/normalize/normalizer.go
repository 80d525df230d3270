// Package normalize converts one raw forecast-hour record into the forcing
// variable set: crop to the operational sub-window, apply per-variable unit
// rules, derive humidity and longwave radiation, and rotate winds to true
// east/north.
package normalize

import (
	"errors"

	"github.com/ctessum/sparse"

	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

const moduleName = "normalize"

// Normalizer applies grid subsetting and physical-unit conversions to raw hour
// records. It is stateless apart from its configuration and safe for reuse
// across hours and days.
type Normalizer struct {
	grid  config.GridConfig
	rules map[string]config.VariableRule
}

// NewNormalizer creates a new Normalizer from the grid window and the bound
// per-variable rule table.
func NewNormalizer(cfg *config.Config, rules map[string]config.VariableRule) *Normalizer {
	return &Normalizer{
		grid:  cfg.Gemflux.Grid,
		rules: rules,
	}
}

// Normalize produces a new HourRecord with cropped, unit-converted, and derived
// fields. The input record is not modified. Normalization runs exactly once per
// record; a second invocation on the produced record is refused.
//
// Fails with ErrMalformedInput if a required field is absent or any grid does
// not match the configured native shape.
func (n *Normalizer) Normalize(rec *model.HourRecord) (*model.HourRecord, error) {
	if rec.Normalized() {
		return nil, exception.New(moduleName, "record already normalized", nil)
	}
	if err := rec.CheckShape(n.grid.NativeNY, n.grid.NativeNX); err != nil {
		return nil, exception.New(moduleName, "source grid shape mismatch", errors.Join(exception.ErrMalformedInput, err))
	}
	for _, name := range []string{model.RawLon, model.RawLat} {
		if !rec.HasField(name) {
			return nil, exception.Newf(moduleName, "coordinate grid %s absent", name, exception.ErrMalformedInput)
		}
	}

	out := model.NewHourRecord(rec.Timestamp, rec.Cycle, rec.LeadHour)

	// Crop and convert every raw physical variable under its rule.
	cropped := make(map[string]*sparse.DenseArray, len(model.RawFieldNames))
	for _, name := range model.RawFieldNames {
		rule := n.rules[name]
		outName := rule.Rename
		if outName == "" {
			outName = name
		}
		raw := rec.Field(name)
		if raw == nil || rec.IsVarMissing(name) {
			if !rule.Optional && raw == nil {
				return nil, exception.Newf(moduleName, "required variable %s absent", name, exception.ErrMalformedInput)
			}
			logger.Debugf("Variable %s absent at %s, carrying NaN placeholder.", name, rec.Timestamp.Format("2006-01-02 15:04"))
			placeholder := model.NaNGrid(n.grid.CropNY(), n.grid.CropNX())
			cropped[name] = placeholder
			out.SetField(outName, placeholder)
			out.MissingVars = append(out.MissingVars, outName)
			continue
		}
		grid := n.crop(raw)
		for i, v := range grid.Elements {
			grid.Elements[i] = rule.Apply(v)
		}
		cropped[name] = grid
		out.SetField(outName, grid)
	}

	lon := n.crop(rec.Field(model.RawLon))
	lat := n.crop(rec.Field(model.RawLat))
	out.SetField(model.FieldLon, lon)
	out.SetField(model.FieldLat, lat)

	n.deriveHumidityAndLongwave(rec, cropped, out)
	n.rotateWinds(out, lon, lat)

	if err := out.MarkNormalized(); err != nil {
		return nil, exception.New(moduleName, "failed to mark record normalized", err)
	}
	return out, nil
}

// crop extracts the configured [JMin,JMax) x [IMin,IMax) sub-window.
func (n *Normalizer) crop(src *sparse.DenseArray) *sparse.DenseArray {
	ny, nx := n.grid.CropNY(), n.grid.CropNX()
	dst := sparse.ZerosDense(ny, nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			dst.Set(src.Get(j+n.grid.CropJMin, i+n.grid.CropIMin), j, i)
		}
	}
	return dst
}
