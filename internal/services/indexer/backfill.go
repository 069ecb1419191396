package indexer

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/models"
)

// BackfillOptions controls a catch-up sweep
type BackfillOptions struct {
	Limit  int  // per phase, 0 for no limit
	DryRun bool // report what would be done
}

// BackfillReport summarizes a sweep
type BackfillReport struct {
	TranscriptsFound   int `json:"transcripts_found"`
	TranscriptsIndexed int `json:"transcripts_indexed"`
	ChunksWritten      int `json:"chunks_written"`
	SummariesFound     int `json:"summaries_found"`
	SummariesEmbedded  int `json:"summaries_embedded"`
	Failures           int `json:"failures"`
}

// Backfill indexes completed testimonies that have no chunks and embeds
// summaries that have no testimony embedding. A failure on one testimony
// is logged and the sweep continues.
func (ix *Indexer) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillReport, error) {
	report := &BackfillReport{}

	pending, err := ix.unindexedTranscripts(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}
	report.TranscriptsFound = len(pending)

	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if opts.DryRun {
			continue
		}
		n, err := ix.IndexTranscript(ctx, t.ID, t.TranscriptText())
		if err != nil {
			report.Failures++
			ix.log.WithError(err).WithField("testimony_id", t.ID).Warn("Backfill indexing failed")
			continue
		}
		report.TranscriptsIndexed++
		report.ChunksWritten += n
	}

	summaries, err := ix.unembeddedSummaries(ctx, opts.Limit)
	if err != nil {
		return report, err
	}
	report.SummariesFound = len(summaries)

	if !opts.DryRun && len(summaries) > 0 {
		embedded, err := ix.embedSummaries(ctx, summaries)
		report.SummariesEmbedded = embedded
		if err != nil {
			report.Failures += len(summaries) - embedded
			ix.log.WithError(err).Warn("Backfill summary embedding failed")
		}
	}

	ix.log.WithFields(logrus.Fields{
		"transcripts_indexed": report.TranscriptsIndexed,
		"summaries_embedded":  report.SummariesEmbedded,
		"failures":            report.Failures,
		"dry_run":             opts.DryRun,
	}).Info("Backfill finished")
	return report, nil
}

func (ix *Indexer) unindexedTranscripts(ctx context.Context, limit int) ([]models.Testimony, error) {
	q := ix.db.WithContext(ctx).
		Where("transcript_status = ?", models.TranscriptCompleted).
		Where("transcript IS NOT NULL AND transcript <> ''").
		Where("NOT EXISTS (SELECT 1 FROM testimony_chunks c WHERE c.testimony_id = testimonies.id)").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []models.Testimony
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("finding unindexed testimonies: %w", err)
	}
	return out, nil
}

func (ix *Indexer) unembeddedSummaries(ctx context.Context, limit int) ([]models.Testimony, error) {
	q := ix.db.WithContext(ctx).
		Select("id", "summary").
		Where("summary IS NOT NULL AND TRIM(summary) <> ''").
		Where("NOT EXISTS (SELECT 1 FROM testimony_embeddings e WHERE e.testimony_id = testimonies.id)").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []models.Testimony
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("finding summaries without embeddings: %w", err)
	}
	return out, nil
}

// embedSummaries embeds and writes in batches, so a failure keeps the
// batches already written.
func (ix *Indexer) embedSummaries(ctx context.Context, rows []models.Testimony) (int, error) {
	const writeBatch = 64
	done := 0
	for start := 0; start < len(rows); start += writeBatch {
		end := min(start+writeBatch, len(rows))
		batch := rows[start:end]

		texts := make([]string, len(batch))
		for i, t := range batch {
			texts[i] = summaryInput(t.SummaryText())
		}
		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return done, err
		}
		if len(vecs) != len(batch) {
			return done, fmt.Errorf("embedding count mismatch: %d summaries, %d vectors", len(batch), len(vecs))
		}

		out := make([]models.TestimonyEmbedding, len(batch))
		for i, t := range batch {
			out[i] = models.TestimonyEmbedding{
				TestimonyID: t.ID,
				Model:       ix.embedder.Model(),
				Embedding:   pgvector.NewVector(vecs[i]),
			}
		}
		if err := ix.upsertSummaryEmbeddings(ctx, out); err != nil {
			return done, err
		}
		done += len(batch)
	}
	return done, nil
}
