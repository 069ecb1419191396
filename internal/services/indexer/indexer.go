// Package indexer chunks and embeds transcripts and summaries and answers
// semantic search queries over them.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/chunker"
	"github.com/killallgit/testimony-api/internal/services/embeddings"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// Indexer writes chunk and summary embeddings
type Indexer struct {
	db       *gorm.DB
	chunker  *chunker.Chunker
	embedder embeddings.Embedder
	log      *logger.Logger
}

// New creates an indexer
func New(db *gorm.DB, c *chunker.Chunker, e embeddings.Embedder, log *logger.Logger) *Indexer {
	return &Indexer{
		db:       db,
		chunker:  c,
		embedder: e,
		log:      logger.OrDefault(log).WithComponent("indexer"),
	}
}

// IndexTranscript chunks and embeds a transcript. Rows are upserted by
// (testimony_id, chunk_index) and rows past the new last index are
// removed, so re-indexing is idempotent. Returns the number of chunks.
func (ix *Indexer) IndexTranscript(ctx context.Context, testimonyID uint, transcript string) (int, error) {
	chunks := ix.chunker.Collect(transcript)

	var rows []models.TestimonyChunk
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding chunks: %w", err)
		}
		if len(vecs) != len(chunks) {
			return 0, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vecs))
		}

		rows = make([]models.TestimonyChunk, len(chunks))
		for i, c := range chunks {
			rows[i] = models.TestimonyChunk{
				TestimonyID: testimonyID,
				ChunkIndex:  c.Index,
				Text:        c.Text,
				TokenCount:  c.TokenCount,
				Embedding:   pgvector.NewVector(vecs[i]),
			}
		}
	}

	err := ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "testimony_id"}, {Name: "chunk_index"}},
				DoUpdates: clause.AssignmentColumns([]string{"text", "token_count", "embedding", "updated_at"}),
			}).CreateInBatches(&rows, 100).Error
			if err != nil {
				return fmt.Errorf("upserting chunks: %w", err)
			}
		}
		return tx.Where("testimony_id = ? AND chunk_index >= ?", testimonyID, len(rows)).
			Delete(&models.TestimonyChunk{}).Error
	})
	if err != nil {
		return 0, err
	}

	ix.log.WithFields(logrus.Fields{
		"testimony_id": testimonyID,
		"chunks":       len(rows),
		"tokenizer":    ix.chunker.Tokenizer().Name(),
	}).Info("Indexed transcript")
	return len(rows), nil
}

// EmbedSummary stores the embedding of the full summary text, tag line
// included. A blank summary is skipped.
func (ix *Indexer) EmbedSummary(ctx context.Context, testimonyID uint, summary string) error {
	text := summaryInput(summary)
	if text == "" {
		return nil
	}

	vec, err := embeddings.EmbedOne(ctx, ix.embedder, text)
	if err != nil {
		return fmt.Errorf("embedding summary: %w", err)
	}
	return ix.upsertSummaryEmbeddings(ctx, []models.TestimonyEmbedding{{
		TestimonyID: testimonyID,
		Model:       ix.embedder.Model(),
		Embedding:   pgvector.NewVector(vec),
	}})
}

func (ix *Indexer) upsertSummaryEmbeddings(ctx context.Context, rows []models.TestimonyEmbedding) error {
	err := ix.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "testimony_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"model", "embedding", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upserting summary embeddings: %w", err)
	}
	return nil
}

// IsIndexed reports whether any chunk exists for the testimony
func (ix *Indexer) IsIndexed(ctx context.Context, testimonyID uint) (bool, error) {
	var count int64
	err := ix.db.WithContext(ctx).Model(&models.TestimonyChunk{}).
		Where("testimony_id = ?", testimonyID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasSummaryEmbedding reports whether the testimony has a summary embedding
func (ix *Indexer) HasSummaryEmbedding(ctx context.Context, testimonyID uint) (bool, error) {
	var row models.TestimonyEmbedding
	err := ix.db.WithContext(ctx).Select("id").Where("testimony_id = ?", testimonyID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func summaryInput(summary string) string {
	return strings.TrimSpace(strings.ReplaceAll(summary, "\n", " "))
}
