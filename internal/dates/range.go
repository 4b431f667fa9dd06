package dates

import (
	"fmt"
	"sort"
	"strings"
	"time"

	naturaldate "github.com/tj/go-naturaldate"
)

// MaxRangeDays caps how many calendar days a single generation run may
// cover. Ranges beyond this are almost always a typo'd year.
const MaxRangeDays = 90

const dayFormat = "2006-01-02"

// InvalidRangeError reports unusable caller input: an inverted interval, an
// empty explicit date set, or a range with no eligible days.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: %s", e.Reason)
}

// Range is either an inclusive [From, To] interval or an explicit set of
// dates. Exactly one of the two forms is populated.
type Range struct {
	From  time.Time
	To    time.Time
	Dates []time.Time
}

// Explicit reports whether the range is an explicit date set rather than an
// interval.
func (r Range) Explicit() bool {
	return len(r.Dates) > 0
}

// Validate checks the range invariants without expanding it.
func (r Range) Validate() error {
	if r.Explicit() {
		return nil
	}
	if r.From.IsZero() && r.To.IsZero() {
		return &InvalidRangeError{Reason: "no dates given"}
	}
	if r.From.After(r.To) {
		return &InvalidRangeError{Reason: fmt.Sprintf("from %s is after to %s",
			r.From.Format(dayFormat), r.To.Format(dayFormat))}
	}
	if int(r.To.Sub(r.From).Hours()/24) > MaxRangeDays {
		return &InvalidRangeError{Reason: fmt.Sprintf("range exceeds %d days", MaxRangeDays)}
	}
	return nil
}

// NewInterval builds an interval range from two dates.
func NewInterval(from, to time.Time) Range {
	return Range{From: truncate(from), To: truncate(to)}
}

// NewExplicit builds a range from an explicit set of dates. Duplicates are
// dropped and the result is sorted.
func NewExplicit(dates []time.Time) Range {
	seen := make(map[string]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = truncate(d)
		key := d.Format(dayFormat)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return Range{Dates: out}
}

// ParseRange turns a user-facing range expression into a Range. Accepted
// forms, in the order they are tried:
//
//	"2024-01-01 to 2024-01-31"  or  "2024-01-01 - 2024-01-31"
//	"2024-01-10, 2024-01-15, 2024-01-20"   (explicit set)
//	"yesterday", "last week", "last month", "this week"
//	"2024-01-15"                           (single day)
//
// now anchors the relative forms so tests stay deterministic.
func ParseRange(input string, now time.Time) (Range, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Range{}, &InvalidRangeError{Reason: "empty range expression"}
	}
	now = truncate(now)

	if from, to, ok := splitInterval(input); ok {
		a, err := parseDay(from, now)
		if err != nil {
			return Range{}, err
		}
		b, err := parseDay(to, now)
		if err != nil {
			return Range{}, err
		}
		if a.After(b) {
			a, b = b, a
		}
		r := NewInterval(a, b)
		return r, r.Validate()
	}

	if strings.Contains(input, ",") {
		var ds []time.Time
		for _, part := range strings.Split(input, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			d, err := parseDay(part, now)
			if err != nil {
				return Range{}, err
			}
			ds = append(ds, d)
		}
		if len(ds) == 0 {
			return Range{}, &InvalidRangeError{Reason: "no dates given"}
		}
		return NewExplicit(ds), nil
	}

	switch strings.ToLower(input) {
	case "last week":
		// Previous Monday through Friday.
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		monday := now.AddDate(0, 0, -daysSinceMonday-7)
		return NewInterval(monday, monday.AddDate(0, 0, 4)), nil
	case "this week":
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		return NewInterval(now.AddDate(0, 0, -daysSinceMonday), now), nil
	case "last month":
		firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return NewInterval(firstOfThis.AddDate(0, -1, 0), firstOfThis.AddDate(0, 0, -1)), nil
	}

	d, err := parseDay(input, now)
	if err != nil {
		return Range{}, err
	}
	return NewInterval(d, d), nil
}

func splitInterval(input string) (string, string, bool) {
	lower := strings.ToLower(input)
	if i := strings.Index(lower, " to "); i >= 0 {
		return input[:i], input[i+4:], true
	}
	if i := strings.Index(input, " - "); i >= 0 {
		return input[:i], input[i+3:], true
	}
	return "", "", false
}

// parseDay accepts YYYY-MM-DD directly and hands anything else to the
// natural-language parser ("yesterday", "3 days ago", "december 25th").
func parseDay(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dayFormat, s); err == nil {
		return d, nil
	}
	d, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, &InvalidRangeError{Reason: fmt.Sprintf("could not parse date %q", s)}
	}
	return truncate(d), nil
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
