package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// entryPayload is the wire shape one synthesized entry arrives in. IDs and
// editability are assigned by the chain, not the model.
type entryPayload struct {
	Date       string   `json:"date" jsonschema:"description=Date in YYYY-MM-DD format"`
	Hours      float64  `json:"hours" jsonschema:"description=Hours worked"`
	Activities string   `json:"activities" jsonschema:"description=Detailed activity description"`
	Learnings  string   `json:"learnings" jsonschema:"description=What was learned or shipped"`
	Blockers   string   `json:"blockers" jsonschema:"description=Blockers or challenges, or None"`
	Links      string   `json:"links" jsonschema:"description=Related links, may be empty"`
	Skills     []string `json:"skills" jsonschema:"description=1-5 skill names from the provided catalog"`
	Confidence float64  `json:"confidence" jsonschema:"description=0-1, how much is directly sourced vs inferred"`
}

type synthesisPayload struct {
	Entries []entryPayload `json:"entries"`
}

// ResponseSchema is the JSON schema sent with every synthesis request,
// reflected from the payload types.
func ResponseSchema() map[string]any {
	r := &jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&synthesisPayload{})

	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("marshaling response schema: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(fmt.Sprintf("unmarshaling response schema: %v", err))
	}
	return m
}

func buildSystemPrompt(req Request) string {
	return fmt.Sprintf(`You are a work-diary assistant. You turn raw task notes into daily diary entries for a student internship log.

Rules:
- Produce exactly one entry per date listed in the user message, in the same order.
- Each entry describes only that date's work. Never mix activities across dates.
- Hours per day must be between %.1f and %.1f, and should vary naturally day to day.
- Activities should name concrete artifacts (files, tools, services) rather than generic phrasing.
- Consecutive days must read as a continuous narrative: work started one day carries into the next, and phrasing must not repeat day-over-day.
- For dates marked "(no specific input)", infer plausible continuity from the neighboring days' work.
- Pick 1-5 skills per entry from the catalog below, rotating them across days.
- Set confidence between 0 and 1: high when the entry restates provided input, low when it is mostly inferred.

Skill catalog: %s

Return valid JSON matching the required schema.`, req.HoursMin, req.HoursMax, strings.Join(req.Skills, ", "))
}

func buildUserPrompt(req Request) string {
	open := req.OpenSlots()

	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d diary entries for these dates:\n\n", len(open))
	for _, slot := range open {
		fmt.Fprintf(&b, "%s:", slot.DateKey())
		if len(slot.Tasks) == 0 {
			b.WriteString(" (no specific input)\n")
			continue
		}
		b.WriteString("\n")
		for _, t := range slot.Tasks {
			fmt.Fprintf(&b, "  - %s", strings.TrimSpace(t.SourceExcerpt))
			if len(t.SkillsHint) > 0 {
				fmt.Fprintf(&b, " [skills: %s]", strings.Join(t.SkillsHint, ", "))
			}
			if t.DurationHint > 0 {
				fmt.Fprintf(&b, " [~%.1fh]", t.DurationHint)
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\nReturn {\"entries\":[...]} with exactly %d entries.", len(open))
	return b.String()
}
