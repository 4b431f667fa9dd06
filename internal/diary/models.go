package diary

import "time"

// TaskUnit is a normalized fragment of raw input, produced by an ingestion
// collaborator (spreadsheet rows, commit logs, meeting notes). Immutable
// once created.
type TaskUnit struct {
	SourceExcerpt string     `json:"source_excerpt"`
	DateHint      *time.Time `json:"date_hint,omitempty"`
	SkillsHint    []string   `json:"skills_hint,omitempty"`
	DurationHint  float64    `json:"duration_hint,omitempty"`
}

// Slot is one calendar date's unit of work in a generation run. Skipped
// slots (weekends, holidays) get no entry but stay in the sequence so the
// range remains gap-free.
type Slot struct {
	Date    time.Time  `json:"date"`
	Tasks   []TaskUnit `json:"tasks,omitempty"`
	Skipped bool       `json:"skipped"`
}

// DateKey returns the slot's date as YYYY-MM-DD, the format used everywhere
// entries and slots are matched against each other.
func (s Slot) DateKey() string {
	return s.Date.Format("2006-01-02")
}

// Entry is a single generated diary entry. Confidence is the model's own
// estimate of how much of the entry is directly sourced versus inferred;
// Plausibility is set later by the plausibility engine and is nil until then.
type Entry struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	Hours        float64  `json:"hours"`
	Activities   string   `json:"activities"`
	Learnings    string   `json:"learnings"`
	Blockers     string   `json:"blockers"`
	Links        string   `json:"links"`
	Skills       []string `json:"skills"`
	Confidence   float64  `json:"confidence"`
	Plausibility *float64 `json:"plausibility,omitempty"`
	Editable     bool     `json:"editable"`
}

// WordCount counts whitespace-separated words in the activities text.
func (e Entry) WordCount() int {
	n := 0
	inWord := false
	for _, r := range e.Activities {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				n++
			}
			inWord = true
		}
	}
	return n
}
