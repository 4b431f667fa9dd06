// Package plausibility scores generated diary entries for how convincingly
// real they read. The report is advisory: it never blocks generation, it
// arms the human reviewer.
package plausibility

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/internlog/internlog/internal/diary"
)

// Policy holds the scoring knobs. The threshold bands ship with the
// defaults below but are policy, not protocol; callers may tune them.
type Policy struct {
	MinWords int
	MaxWords int

	// Advisory band boundaries.
	PerfectThreshold    float64
	StrongThreshold     float64
	AcceptableThreshold float64
	WeakThreshold       float64

	// Repetition detection: entries within RepetitionWindow days of each
	// other whose texts are at least RepetitionSimilarity similar form one
	// cross-entry flag.
	RepetitionWindow     int
	RepetitionSimilarity float64
}

func DefaultPolicy() Policy {
	return Policy{
		MinWords:             120,
		MaxWords:             180,
		PerfectThreshold:     0.95,
		StrongThreshold:      0.85,
		AcceptableThreshold:  0.70,
		WeakThreshold:        0.50,
		RepetitionWindow:     3,
		RepetitionSimilarity: 0.9,
	}
}

// Band returns the advisory label for a score.
func (p Policy) Band(score float64) string {
	switch {
	case score >= p.PerfectThreshold:
		return "suspiciously perfect"
	case score >= p.StrongThreshold:
		return "strong"
	case score >= p.AcceptableThreshold:
		return "acceptable"
	case score >= p.WeakThreshold:
		return "weak but usable"
	default:
		return "needs more source material"
	}
}

// EntryScore is one entry's plausibility verdict.
type EntryScore struct {
	Score float64  `json:"score"`
	Flags []string `json:"flags,omitempty"`
}

// Report is the batch verdict, recomputed on every generation and never
// persisted.
type Report struct {
	OverallScore  float64               `json:"overall_score"`
	AvgConfidence float64               `json:"avg_confidence"`
	Flags         []string              `json:"flags,omitempty"`
	EntryScores   map[string]EntryScore `json:"entry_scores"`
}

var lazyVerbs = []string{"worked", "did", "made", "created", "used", "started", "continued"}

var strongVerbs = []string{
	"implemented", "architected", "refactored", "debugged", "profiled",
	"configured", "integrated", "validated", "benchmarked", "containerized",
	"optimized", "migrated", "deployed", "orchestrated", "authored",
	"investigated", "resolved", "streamlined", "automated", "iterated",
}

type Engine struct {
	policy Policy
	logger *slog.Logger
}

func New(policy Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{policy: policy, logger: logger}
}

// Score evaluates a batch of entries against the slots they were generated
// from. Pure with respect to its inputs: scoring the same sequence twice
// yields an identical report.
func (e *Engine) Score(entries []diary.Entry, slots []diary.Slot) Report {
	if len(entries) == 0 {
		return Report{Flags: []string{"no entries to analyze"}, EntryScores: map[string]EntryScore{}}
	}

	hintsByDate := skillHints(slots)
	scores := make(map[string]EntryScore, len(entries))

	var flags []string
	var hours []float64
	var confidenceSum float64
	skillCounts := make(map[string]int)
	blockerDays := 0

	for _, entry := range entries {
		confidenceSum += entry.Confidence
		hours = append(hours, entry.Hours)
		for _, s := range entry.Skills {
			skillCounts[s]++
		}
		if hasBlocker(entry.Blockers) {
			blockerDays++
		}
		scores[entry.ID] = e.scoreEntry(entry, hintsByDate[entry.Date])
	}

	// Cross-entry repetition: one flag per cluster of near-identical texts.
	for _, cluster := range e.repetitionClusters(entries) {
		flags = append(flags, fmt.Sprintf(
			"entries for %s are near-identical — phrasing repeats across days",
			strings.Join(cluster, ", ")))
	}

	flags = append(flags, e.batchFlags(entries, hours, skillCounts, blockerDays)...)

	// Low scorers are surfaced at batch level too.
	for _, entry := range entries {
		if s := scores[entry.ID]; s.Score < e.policy.WeakThreshold {
			flags = append(flags, fmt.Sprintf(
				"entry for %s scored %.2f — needs more source material", entry.Date, s.Score))
		}
	}

	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	overall := clamp(sum/float64(len(entries)) - 0.03*float64(len(flags)))

	if overall >= e.policy.PerfectThreshold {
		flags = append([]string{"overall plausibility is suspiciously perfect — review before trusting"}, flags...)
	}

	e.logger.Debug("plausibility scored",
		"entries", len(entries),
		"overall", overall,
		"flags", len(flags),
	)

	return Report{
		OverallScore:  round3(overall),
		AvgConfidence: round3(confidenceSum / float64(len(entries))),
		Flags:         flags,
		EntryScores:   scores,
	}
}

// Annotate copies per-entry scores onto the entries' Plausibility field and
// returns the annotated copy. The input slice is not modified.
func Annotate(entries []diary.Entry, report Report) []diary.Entry {
	out := make([]diary.Entry, len(entries))
	copy(out, entries)
	for i := range out {
		if s, ok := report.EntryScores[out[i].ID]; ok {
			score := s.Score
			out[i].Plausibility = &score
		}
	}
	return out
}

func (e *Engine) scoreEntry(entry diary.Entry, skillHints []string) EntryScore {
	score := entry.Confidence
	if score == 0 {
		score = 0.7
	}
	var flags []string

	// Length band.
	words := entry.WordCount()
	if words < e.policy.MinWords {
		flags = append(flags, fmt.Sprintf("below minimum word count (%d/%d)", words, e.policy.MinWords))
		score -= 0.1
	} else if words > e.policy.MaxWords {
		flags = append(flags, fmt.Sprintf("exceeds maximum word count (%d/%d)", words, e.policy.MaxWords))
		score -= 0.05
	}

	// Specificity: concrete artifacts read as real, generic verbs don't.
	lower := " " + strings.ToLower(entry.Activities) + " "
	lazy := 0
	for _, v := range lazyVerbs {
		if strings.Contains(lower, " "+v+" ") {
			lazy++
		}
	}
	strong := 0
	for _, v := range strongVerbs {
		if strings.Contains(lower, v) {
			strong++
		}
	}
	if lazy > 3 && strong < 2 {
		flags = append(flags, "vocabulary too generic — needs stronger technical verbs")
		score -= 0.05
	}
	if countArtifacts(entry.Activities) >= 2 {
		score += 0.05
	}

	if len(entry.Skills) == 0 {
		flags = append(flags, "no skills listed")
		score -= 0.05
	} else if len(skillHints) > 0 && overlap(entry.Skills, skillHints) == 0 {
		flags = append(flags, "declared skills have no overlap with the source tasks")
		score -= 0.05
	}

	if f := repetitiveOpeners(entry.Activities); f != "" {
		flags = append(flags, f)
		score -= 0.05
	}

	return EntryScore{Score: round3(clamp(score)), Flags: flags}
}

func (e *Engine) batchFlags(entries []diary.Entry, hours []float64, skillCounts map[string]int, blockerDays int) []string {
	var flags []string

	if len(hours) > 3 && stddev(hours) < 0.3 {
		flags = append(flags, fmt.Sprintf(
			"hours are suspiciously uniform (std=%.2f) — real logs vary day to day", stddev(hours)))
	}

	if len(entries) > 5 {
		var top string
		var topCount int
		for s, c := range skillCounts {
			if c > topCount || (c == topCount && s < top) {
				top, topCount = s, c
			}
		}
		if float64(topCount) > float64(len(entries))*0.8 {
			flags = append(flags, fmt.Sprintf(
				"skill %q appears in %d/%d entries — rotate skills across days", top, topCount, len(entries)))
		}
	}

	ratio := float64(blockerDays) / float64(len(entries))
	if ratio > 0.6 {
		flags = append(flags, fmt.Sprintf(
			"too many days with blockers (%d/%d)", blockerDays, len(entries)))
	} else if ratio < 0.1 && len(entries) > 10 {
		flags = append(flags, "almost no days mention challenges — occasional blockers read as more real")
	}

	return flags
}

// repetitionClusters groups entries whose activity texts are near-identical
// and fall within the repetition window of each other, returning each
// cluster's dates. Transitive: a-b similar and b-c similar puts all three in
// one cluster.
func (e *Engine) repetitionClusters(entries []diary.Entry) [][]string {
	n := len(entries)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dayDistance(entries[i].Date, entries[j].Date) > e.policy.RepetitionWindow {
				continue
			}
			if similarity(entries[i].Activities, entries[j].Activities) >= e.policy.RepetitionSimilarity {
				parent[find(i)] = find(j)
			}
		}
	}

	byRoot := make(map[int][]string)
	for i := range entries {
		r := find(i)
		byRoot[r] = append(byRoot[r], entries[i].Date)
	}

	var clusters [][]string
	for _, dates := range byRoot {
		if len(dates) < 2 {
			continue
		}
		sort.Strings(dates)
		clusters = append(clusters, dates)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0] < clusters[j][0] })
	return clusters
}

// similarity is token-set Jaccard over lowercased words.
func similarity(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	both := 0
	for w := range as {
		if bs[w] {
			both++
		}
	}
	union := len(as) + len(bs) - both
	return float64(both) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(w, ".,;:!?\"'()")] = true
	}
	delete(set, "")
	return set
}

var artifactRe = regexp.MustCompile(`\b\S*[./_]\S+\b|\b[a-z]+[A-Z]\w+\b`)

func countArtifacts(s string) int {
	return len(artifactRe.FindAllString(s, -1))
}

func repetitiveOpeners(activities string) string {
	sentences := regexp.MustCompile(`[.!?]+`).Split(activities, -1)
	var openers []string
	for _, s := range sentences {
		words := strings.Fields(strings.TrimSpace(s))
		if len(words) == 0 {
			continue
		}
		if len(words) > 3 {
			words = words[:3]
		}
		openers = append(openers, strings.ToLower(strings.Join(words, " ")))
	}
	if len(openers) <= 2 {
		return ""
	}
	unique := make(map[string]bool)
	for _, o := range openers {
		unique[o] = true
	}
	if float64(len(unique)) < float64(len(openers))*0.6 {
		return "repetitive sentence openers detected"
	}
	return ""
}

func skillHints(slots []diary.Slot) map[string][]string {
	hints := make(map[string][]string)
	for _, slot := range slots {
		for _, t := range slot.Tasks {
			hints[slot.DateKey()] = append(hints[slot.DateKey()], t.SkillsHint...)
		}
	}
	return hints
}

func overlap(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[strings.ToLower(s)] = true
	}
	n := 0
	for _, s := range a {
		if set[strings.ToLower(s)] {
			n++
		}
	}
	return n
}

func hasBlocker(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n/a":
		return false
	}
	return true
}

func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func dayDistance(a, b string) int {
	ta, errA := parseDay(a)
	tb, errB := parseDay(b)
	if errA != nil || errB != nil {
		return math.MaxInt32
	}
	d := int(ta.Sub(tb).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
