package dates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
)

// HolidaySet maps YYYY-MM-DD date keys to holiday names.
type HolidaySet map[string]string

// Contains reports whether the given day is a holiday.
func (h HolidaySet) Contains(d time.Time) bool {
	_, ok := h[d.Format(dayFormat)]
	return ok
}

// FetchHolidays loads all-day events from an iCalendar source (URL or file
// path) and returns them keyed by date. Multi-day events mark every covered
// day.
func FetchHolidays(ctx context.Context, source string) (HolidaySet, error) {
	var r io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching holiday calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("holiday calendar fetch returned status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening holiday calendar file: %w", err)
		}
		r = f
	}
	defer r.Close()

	return decodeHolidays(r)
}

func decodeHolidays(r io.Reader) (HolidaySet, error) {
	dec := ical.NewDecoder(r)
	holidays := make(HolidaySet)

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing holiday calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			start, err := event.DateTimeStart(nil)
			if err != nil {
				continue // skip malformed events
			}
			summary, _ := event.Props.Text(ical.PropSummary)
			if summary == "" {
				summary = "holiday"
			}

			end, err := event.DateTimeEnd(nil)
			if err != nil || !end.After(start) {
				holidays[start.Format(dayFormat)] = summary
				continue
			}
			for d := truncate(start); d.Before(end); d = d.AddDate(0, 0, 1) {
				holidays[d.Format(dayFormat)] = summary
			}
		}
	}

	return holidays, nil
}
