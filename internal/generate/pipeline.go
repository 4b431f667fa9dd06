// Package generate runs the full generation pipeline: calendar mapping,
// single-call synthesis with provider fallback, and plausibility scoring.
package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/internlog/internlog/internal/ai"
	"github.com/internlog/internlog/internal/dates"
	"github.com/internlog/internlog/internal/diary"
	"github.com/internlog/internlog/internal/plausibility"
	"github.com/internlog/internlog/internal/skills"
)

// Params is one generation request.
type Params struct {
	Range      dates.Range
	Tasks      []diary.TaskUnit
	MapOptions dates.MapOptions

	Preferred string // preferred provider, empty for priority order
	HoursMin  float64
	HoursMax  float64

	// ConfidenceThreshold splits entries into auto-approve candidates and
	// ones needing review. Zero means 0.75.
	ConfidenceThreshold float64
}

// Output is everything the review collaborator needs: the entries, the
// plausibility report, and the confidence partition.
type Output struct {
	SessionID string               `json:"session_id"`
	Slots     []diary.Slot         `json:"slots"`
	Entries   []diary.Entry        `json:"entries"`
	Report    plausibility.Report  `json:"plausibility_report"`

	HighConfidence []diary.Entry `json:"high_confidence"`
	NeedsReview    []diary.Entry `json:"needs_review"`
}

type Pipeline struct {
	chain   *ai.Chain
	engine  *plausibility.Engine
	catalog *skills.Catalog
	logger  *slog.Logger
}

func NewPipeline(chain *ai.Chain, engine *plausibility.Engine, catalog *skills.Catalog, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{chain: chain, engine: engine, catalog: catalog, logger: logger}
}

func (p *Pipeline) Run(ctx context.Context, params Params) (*Output, error) {
	slots, err := dates.MapSlots(params.Range, params.Tasks, params.MapOptions)
	if err != nil {
		return nil, err
	}

	req := ai.Request{
		Slots:    slots,
		Skills:   p.catalog.Names(),
		HoursMin: defaultF(params.HoursMin, 8.0),
		HoursMax: defaultF(params.HoursMax, 9.0),
	}

	open := len(req.OpenSlots())
	if open == 0 {
		// Every day in the range is skipped (weekend-only range, holidays).
		// Nothing to ask a model for, so no provider call is spent.
		p.logger.Info("no open slots in range, nothing to generate", "slots", len(slots))
		return &Output{
			SessionID: uuid.NewString(),
			Slots:     slots,
			Report:    p.engine.Score(nil, slots),
		}, nil
	}
	p.logger.Info("generating entries", "slots", len(slots), "open_slots", open)

	entries, err := p.chain.Synthesize(ctx, req, params.Preferred)
	if err != nil {
		return nil, fmt.Errorf("synthesizing entries: %w", err)
	}

	for i := range entries {
		entries[i].Skills = p.catalog.Normalize(entries[i].Skills)
	}

	report := p.engine.Score(entries, slots)
	entries = plausibility.Annotate(entries, report)

	threshold := defaultF(params.ConfidenceThreshold, 0.75)
	var high, review []diary.Entry
	for _, e := range entries {
		if e.Confidence >= threshold {
			high = append(high, e)
		} else {
			review = append(review, e)
		}
	}

	p.logger.Info("generation complete",
		"entries", len(entries),
		"overall_plausibility", report.OverallScore,
		"high_confidence", len(high),
		"needs_review", len(review),
	)

	return &Output{
		SessionID:      uuid.NewString(),
		Slots:          slots,
		Entries:        entries,
		Report:         report,
		HighConfidence: high,
		NeedsReview:    review,
	}, nil
}

func defaultF(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
