// Package assemble builds one calendar day's 24-hour forcing sequence from
// hourly forecast extracts spanning two forecast cycles, repairs the
// accumulated-precipitation discontinuity at the cycle boundary, and snaps
// timestamps to hour boundaries.
package assemble

import (
	"time"

	"github.com/tidewaterlab/gemflux/internal/model"
)

// SlotSource identifies the forecast-hour file that is authoritative for one
// slot of a daily sequence.
type SlotSource struct {
	// Slot is the index 0..23 within the daily sequence, or -1/24 for the
	// margin hours bounding the span.
	Slot int
	// FileDate is the calendar date in the source file name.
	FileDate time.Time
	// Cycle is the forecast cycle in the source file name (e.g. "06").
	Cycle string
	// LeadHour is the forecast lead hour in the source file name (1..24).
	LeadHour int
	// Valid is the real-world timestamp the slot represents.
	Valid time.Time
}

// Schedule maps a target calendar day to the 24 forecast-hour files that back
// its slots under the 06-cycle convention. The daily span runs from 18:00 of
// the previous day through 17:00 of the target day:
//
//	slots 0..6  <- previous day's 06 cycle, lead hours 18..24 (18:00 d-1 .. 00:00 d)
//	slots 7..23 <- target day's 06 cycle, lead hours 1..17   (01:00 .. 17:00 d)
//
// Shorter lead hours carry more forecast skill, which is why each real-world
// hour is taken from the latest cycle that covers it. The mapping is pure and
// deterministic; it is the single authority on slot provenance.
func Schedule(day time.Time, cycle string) []SlotSource {
	day = day.Truncate(24 * time.Hour)
	prevDay := day.AddDate(0, 0, -1)
	spanStart := day.Add(-6 * time.Hour) // 18:00 of the previous day

	sources := make([]SlotSource, 0, model.HoursPerDay)
	for slot := 0; slot < model.HoursPerDay; slot++ {
		src := SlotSource{
			Slot:  slot,
			Cycle: cycle,
			Valid: spanStart.Add(time.Duration(slot) * time.Hour),
		}
		if slot <= 6 {
			src.FileDate = prevDay
			src.LeadHour = 18 + slot
		} else {
			src.FileDate = day
			src.LeadHour = slot - 6
		}
		sources = append(sources, src)
	}
	return sources
}

// MarginSources returns the two hours bounding the daily span: 17:00 of the
// previous day (previous day's cycle, lead 17) and 18:00 of the target day
// (target day's cycle, lead 18). Both come from cycles the day already reads.
// The margins are never written to output; they bound gap interpolation at the
// span edges and give the first slot a predecessor to difference and smooth
// against, so consecutive days chain without a discontinuity at 18:00.
func MarginSources(day time.Time, cycle string) (prev, next SlotSource) {
	day = day.Truncate(24 * time.Hour)
	spanStart := day.Add(-6 * time.Hour)

	prev = SlotSource{
		Slot:     -1,
		FileDate: day.AddDate(0, 0, -1),
		Cycle:    cycle,
		LeadHour: 17,
		Valid:    spanStart.Add(-time.Hour),
	}
	next = SlotSource{
		Slot:     model.HoursPerDay,
		FileDate: day,
		Cycle:    cycle,
		LeadHour: 18,
		Valid:    spanStart.Add(model.HoursPerDay * time.Hour),
	}
	return prev, next
}
