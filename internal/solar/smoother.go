// Package solar applies the hour-averaging convention to the instantaneous
// solar radiation field of an assembled daily sequence.
package solar

import (
	"github.com/ctessum/sparse"

	"github.com/tidewaterlab/gemflux/internal/model"
)

// Smoother replaces each slot's solar field with the per-cell mean of the
// current and previous hour's instantaneous values, approximating the
// hour-averaged convention of companion forcing datasets.
type Smoother struct{}

// NewSmoother creates a new Smoother.
func NewSmoother() *Smoother {
	return &Smoother{}
}

// Smooth averages each slot's solar field with its predecessor's raw
// (pre-smoothing) value. The first slot's predecessor is the Prev margin hour,
// so consecutive days chain without a seam at 18:00; with no margin the first
// slot is left unmodified. Walking the span backwards means every pair reads
// the predecessor's original field. Other fields are untouched.
func (s *Smoother) Smooth(seq *model.DailySequence) {
	for i := model.HoursPerDay - 1; i >= 0; i-- {
		rec := seq.Records[i]
		prev := seq.Prev
		if i > 0 {
			prev = seq.Records[i-1]
		}
		if rec == nil || prev == nil {
			continue
		}
		cur := rec.Field(model.FieldSolar)
		prevSolar := prev.Field(model.FieldSolar)
		if cur == nil || prevSolar == nil {
			continue
		}
		avg := sparse.ZerosDense(cur.Shape...)
		for j, v := range cur.Elements {
			avg.Elements[j] = (v + prevSolar.Elements[j]) / 2
		}
		rec.SetField(model.FieldSolar, avg)
	}
}
