package dates

import (
	"time"

	"github.com/internlog/internlog/internal/diary"
)

// MapOptions controls which days in a range are eligible for entries.
type MapOptions struct {
	SkipWeekends bool
	SkipHolidays bool
	Holidays     HolidaySet
}

// MapSlots expands a range into one slot per date and distributes tasks
// across the non-skipped slots. The result covers the range exactly once,
// in order, with skipped days kept in place so downstream consumers see a
// gap-free sequence.
//
// Distribution: tasks with a date hint are pinned to the nearest non-skipped
// slot; tasks without one are spread round-robin across non-skipped slots in
// input order. Pure: identical inputs produce identical output.
func MapSlots(r Range, tasks []diary.TaskUnit, opts MapOptions) ([]diary.Slot, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var slots []diary.Slot
	if r.Explicit() {
		if len(r.Dates) == 0 {
			return nil, &InvalidRangeError{Reason: "explicit date set is empty"}
		}
		for _, d := range r.Dates {
			slots = append(slots, diary.Slot{Date: d, Skipped: skipped(d, opts)})
		}
	} else {
		for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
			slots = append(slots, diary.Slot{Date: d, Skipped: skipped(d, opts)})
		}
	}

	var open []int // indexes of non-skipped slots
	for i, s := range slots {
		if !s.Skipped {
			open = append(open, i)
		}
	}
	if len(open) == 0 && len(tasks) > 0 {
		return nil, &InvalidRangeError{Reason: "no eligible days in range"}
	}

	next := 0 // round-robin cursor over open slots
	for _, task := range tasks {
		var idx int
		if task.DateHint != nil {
			idx = nearestOpen(slots, open, truncate(*task.DateHint))
		} else {
			idx = open[next%len(open)]
			next++
		}
		slots[idx].Tasks = append(slots[idx].Tasks, task)
	}

	return slots, nil
}

func skipped(d time.Time, opts MapOptions) bool {
	if opts.SkipWeekends && (d.Weekday() == time.Saturday || d.Weekday() == time.Sunday) {
		return true
	}
	if opts.SkipHolidays && opts.Holidays.Contains(d) {
		return true
	}
	return false
}

// nearestOpen returns the open slot index whose date is closest to target,
// preferring the earlier slot on a tie.
func nearestOpen(slots []diary.Slot, open []int, target time.Time) int {
	best := open[0]
	bestDist := absDays(slots[best].Date, target)
	for _, i := range open[1:] {
		if d := absDays(slots[i].Date, target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func absDays(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
