package rpn

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/tidewaterlab/gemflux/internal/assemble"
	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/model"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
)

// ReadHourFile reads one decoded forecast-hour file into an HourRecord.
// The fixed physical variable set plus the coordinate grids are read at native
// resolution. A variable marked optional in the rule table may be absent; it is
// carried as a NaN placeholder and listed in the record's MissingVars. Absence
// of any other variable or coordinate grid is a malformed input.
func ReadHourFile(path string, src assemble.SlotSource, rules map[string]config.VariableRule) (*model.HourRecord, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, exception.Newf(moduleName, "failed to open hour file %s", path, err)
	}
	defer ff.Close()

	f, err := cdf.Open(ff)
	if err != nil {
		return nil, exception.Newf(moduleName, "failed to parse hour file %s", path, err)
	}

	rec := model.NewHourRecord(src.Valid, src.Cycle, src.LeadHour)

	var ny, nx int
	for _, name := range append([]string{model.RawLon, model.RawLat}, model.RawFieldNames...) {
		data, err := readGrid(f, name)
		if err != nil {
			if rules[name].Optional {
				rec.MissingVars = append(rec.MissingVars, name)
				continue
			}
			return nil, exception.New(moduleName, "hour file "+path+" is malformed",
				joinMalformed(err))
		}
		if ny == 0 {
			ny, nx = data.Shape[0], data.Shape[1]
		} else if data.Shape[0] != ny || data.Shape[1] != nx {
			return nil, exception.New(moduleName, "hour file "+path+" has inconsistent grid shapes",
				joinMalformed(fmt.Errorf("variable %s has shape %v, want [%d %d]", name, data.Shape, ny, nx)))
		}
		rec.SetField(name, data)
	}

	// Placeholders are created once the grid shape is known.
	for _, name := range rec.MissingVars {
		rec.SetField(name, model.NaNGrid(ny, nx))
	}
	return rec, nil
}

// readGrid reads one named 2-D variable from a decoded hour file. Leading
// length-1 dimensions (record or level axes collapsed by the decoder) are
// dropped.
func readGrid(f *cdf.File, name string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %s not in file", name)
	}
	for len(dims) > 2 && dims[0] == 1 {
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("variable %s has %d non-trivial dimensions, want 2", name, len(dims))
	}

	nread := dims[0] * dims[1]
	fullDims := f.Header.Lengths(name)
	start := make([]int, len(fullDims))
	end := make([]int, len(fullDims))
	copy(end[len(fullDims)-2:], dims)
	for i := 0; i < len(fullDims)-2; i++ {
		end[i] = 1
	}

	r := f.Reader(name, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to read variable %s: %w", name, err)
	}

	data := sparse.ZerosDense(dims...)
	switch vals := buf.(type) {
	case []float32:
		for i, v := range vals {
			data.Elements[i] = float64(v)
		}
	case []float64:
		copy(data.Elements, vals)
	default:
		return nil, fmt.Errorf("variable %s has unsupported element type %T", name, buf)
	}
	return data, nil
}

func joinMalformed(err error) error {
	return fmt.Errorf("%w: %w", exception.ErrMalformedInput, err)
}
