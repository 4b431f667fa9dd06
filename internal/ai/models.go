package ai

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/internlog/internlog/internal/diary"
)

// parseResponse decodes a provider's raw JSON and checks it against the
// response contract: exactly one entry per non-skipped slot, dates matching
// the slots in order. Any violation is a MalformedResponseError, which the
// chain treats as retry-then-fallback, not a hard failure.
func parseResponse(provider string, raw string, req Request) ([]diary.Entry, error) {
	var payload synthesisPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, &MalformedResponseError{
			Provider: provider,
			Reason:   fmt.Sprintf("parsing JSON: %v (raw: %s)", err, truncateStr(raw, 500)),
		}
	}

	open := req.OpenSlots()
	if len(payload.Entries) != len(open) {
		return nil, &MalformedResponseError{
			Provider: provider,
			Reason:   fmt.Sprintf("expected %d entries, got %d", len(open), len(payload.Entries)),
		}
	}

	entries := make([]diary.Entry, 0, len(open))
	for i, p := range payload.Entries {
		want := open[i].DateKey()
		if p.Date != want {
			return nil, &MalformedResponseError{
				Provider: provider,
				Reason:   fmt.Sprintf("entry %d has date %s, slot expects %s", i, p.Date, want),
			}
		}
		entries = append(entries, diary.Entry{
			ID:         uuid.NewString(),
			Date:       p.Date,
			Hours:      clamp(p.Hours, req.HoursMin, req.HoursMax),
			Activities: p.Activities,
			Learnings:  p.Learnings,
			Blockers:   defaultStr(p.Blockers, "None"),
			Links:      p.Links,
			Skills:     p.Skills,
			Confidence: clamp(p.Confidence, 0, 1),
			Editable:   true,
		})
	}
	return entries, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
