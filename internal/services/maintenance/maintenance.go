// Package maintenance holds one-off sweeps over stored testimonies:
// regenerating summaries under the current prompt and cleaning up
// summaries written by older prompts.
package maintenance

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/services/summary"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// SummaryEngine generates summaries and knows the id of its prompt
type SummaryEngine interface {
	GenerateSummary(ctx context.Context, transcript string) string
	PromptID(ctx context.Context) *uint
}

// SummaryEmbedder refreshes the summary embedding after a rewrite
type SummaryEmbedder interface {
	EmbedSummary(ctx context.Context, testimonyID uint, summaryText string) error
}

// Options controls a sweep
type Options struct {
	DryRun bool
	Limit  int
}

// Change is one testimony touched (or that would be touched) by a sweep
type Change struct {
	TestimonyID uint   `json:"testimony_id"`
	Before      string `json:"before,omitempty"`
	After       string `json:"after"`
}

// Report summarizes a sweep
type Report struct {
	Candidates int      `json:"candidates"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	PromptID   *uint    `json:"prompt_id,omitempty"`
	Changes    []Change `json:"changes,omitempty"`
}

// Resummarizer regenerates summaries for completed testimonies whose
// summary was not produced by the current prompt.
type Resummarizer struct {
	repo     testimonies.Repository
	engine   SummaryEngine
	embedder SummaryEmbedder
	log      *logger.Logger
}

// NewResummarizer creates a resummarizer. embedder may be nil.
func NewResummarizer(repo testimonies.Repository, engine SummaryEngine, embedder SummaryEmbedder, log *logger.Logger) *Resummarizer {
	return &Resummarizer{
		repo:     repo,
		engine:   engine,
		embedder: embedder,
		log:      logger.OrDefault(log).WithComponent("resummarize"),
	}
}

// Run regenerates summaries. In dry-run mode summaries are generated for
// preview but nothing is written. An empty summary leaves the stored one
// untouched.
func (r *Resummarizer) Run(ctx context.Context, opts Options) (*Report, error) {
	promptID := r.engine.PromptID(ctx)
	if promptID == nil {
		return nil, fmt.Errorf("current summary prompt could not be registered")
	}

	rows, err := r.repo.ListCompleted(ctx, testimonies.CompletedFilter{PromptNot: promptID, Limit: opts.Limit})
	if err != nil {
		return nil, err
	}

	report := &Report{Candidates: len(rows), PromptID: promptID}
	for _, t := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := r.log.WithFields(logrus.Fields{"testimony_id": t.ID, "prompt_id": *promptID})

		if !t.HasTranscript() {
			report.Skipped++
			continue
		}

		text := r.engine.GenerateSummary(ctx, t.TranscriptText())
		if text == "" {
			log.Warn("Empty summary, keeping the stored one")
			report.Failed++
			continue
		}
		report.Changes = append(report.Changes, Change{TestimonyID: t.ID, Before: t.SummaryText(), After: text})

		if opts.DryRun {
			continue
		}
		if err := r.repo.SetSummary(ctx, t.ID, text, promptID); err != nil {
			log.WithError(err).Error("Failed to store summary")
			report.Failed++
			continue
		}
		report.Updated++

		if r.embedder != nil {
			if err := r.embedder.EmbedSummary(ctx, t.ID, text); err != nil {
				log.WithError(err).Warn("Summary embedding failed, left for backfill")
			}
		}
	}

	r.log.WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"updated":    report.Updated,
		"failed":     report.Failed,
		"dry_run":    opts.DryRun,
	}).Info("Resummarize finished")
	return report, nil
}

// StripSections removes the legacy "**Resumen:**" heading and the
// "**Etiquetas doctrinales:**" tail from stored summaries, keeping their
// prompt reference. Summaries that would become empty are skipped.
func StripSections(ctx context.Context, repo testimonies.Repository, opts Options, log *logger.Logger) (*Report, error) {
	log = logger.OrDefault(log).WithComponent("strip_sections")

	rows, err := repo.ListCompleted(ctx, testimonies.CompletedFilter{WithSummary: true, Limit: opts.Limit})
	if err != nil {
		return nil, err
	}

	report := &Report{Candidates: len(rows)}
	for _, t := range rows {
		before := t.SummaryText()
		after := summary.StripLegacySections(before)
		if after == before {
			continue
		}
		if after == "" {
			log.WithField("testimony_id", t.ID).Warn("Summary would be empty after stripping, skipping")
			report.Skipped++
			continue
		}

		report.Changes = append(report.Changes, Change{TestimonyID: t.ID, Before: before, After: after})
		if opts.DryRun {
			continue
		}
		if err := repo.SetSummary(ctx, t.ID, after, t.SummaryPromptID); err != nil {
			log.WithError(err).WithField("testimony_id", t.ID).Error("Failed to update summary")
			report.Failed++
			continue
		}
		report.Updated++
	}

	log.WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"updated":    report.Updated,
		"dry_run":    opts.DryRun,
	}).Info("Strip sections finished")
	return report, nil
}
