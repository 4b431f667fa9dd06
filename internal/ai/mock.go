package ai

import (
	"context"

	"github.com/google/uuid"
	"github.com/internlog/internlog/internal/diary"
)

// Mock is a scriptable provider for tests and offline dry runs. Errs are
// consumed in order; once they run out, Synthesize produces a deterministic
// placeholder entry per open slot.
type Mock struct {
	ProviderName string
	Errs         []error
	Calls        int
}

func (m *Mock) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *Mock) Synthesize(ctx context.Context, req Request) ([]diary.Entry, error) {
	m.Calls++
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		if err != nil {
			return nil, err
		}
	}

	var entries []diary.Entry
	for _, slot := range req.OpenSlots() {
		skills := []string{"Git"}
		if len(slot.Tasks) > 0 && len(slot.Tasks[0].SkillsHint) > 0 {
			skills = slot.Tasks[0].SkillsHint
		}
		activities := "Continued work on the ongoing project tasks."
		if len(slot.Tasks) > 0 {
			activities = slot.Tasks[0].SourceExcerpt
		}
		entries = append(entries, diary.Entry{
			ID:         uuid.NewString(),
			Date:       slot.DateKey(),
			Hours:      req.HoursMin,
			Activities: activities,
			Learnings:  "Reviewed the day's changes.",
			Blockers:   "None",
			Skills:     skills,
			Confidence: 0.8,
			Editable:   true,
		})
	}
	return entries, nil
}
