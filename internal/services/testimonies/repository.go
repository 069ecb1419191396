package testimonies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/killallgit/testimony-api/internal/models"
)

type repository struct {
	db *gorm.DB
}

var _ Repository = (*repository)(nil)

// NewRepository creates a new testimony repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, t *models.Testimony) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("creating testimony: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id uint) (*models.Testimony, error) {
	var t models.Testimony
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestimonyNotFound
		}
		return nil, fmt.Errorf("getting testimony: %w", err)
	}
	return &t, nil
}

// List returns a page of testimonies, newest recording first, and the
// total number of rows matching the filter.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Testimony, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Testimony{})

	if filter.Origin != "" {
		query = query.Where("origin = ?", filter.Origin)
	}
	if filter.Status != "" {
		query = query.Where("transcript_status = ?", filter.Status)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		// tags is a JSON array of strings; match the quoted element
		query = query.Where("tags LIKE ?", `%"`+escapeLike(tag)+`"%`)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting testimonies: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var rows []models.Testimony
	if err := query.
		Order("recorded_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(max(filter.Offset, 0)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("listing testimonies: %w", err)
	}

	return rows, total, nil
}

// FindDuplicate looks up the record an upload with this fingerprint should
// resolve to. Completed and in-flight records block a new upload; failed
// and completed_empty ones do not. An empty origin searches every origin.
func (r *repository) FindDuplicate(ctx context.Context, hash, origin string) (*models.Testimony, bool, error) {
	if hash == "" {
		return nil, false, nil
	}

	query := r.db.WithContext(ctx).
		Where("audio_hash = ?", hash).
		Where("transcript_status IN ?", []models.TranscriptStatus{
			models.TranscriptCompleted,
			models.TranscriptPending,
			models.TranscriptProcessing,
		})
	if origin != "" {
		query = query.Where("origin = ?", origin)
	}

	// Prefer a completed record over an in-flight one, then the oldest
	var t models.Testimony
	err := query.
		Order(fmt.Sprintf("CASE WHEN transcript_status = '%s' THEN 0 ELSE 1 END", models.TranscriptCompleted)).
		Order("id ASC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("finding duplicate: %w", err)
	}
	return &t, true, nil
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("testimony_id = ?", id).Delete(&models.TestimonyChunk{}).Error; err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}
		if err := tx.Where("testimony_id = ?", id).Delete(&models.TestimonyEmbedding{}).Error; err != nil {
			return fmt.Errorf("deleting embedding: %w", err)
		}
		res := tx.Delete(&models.Testimony{}, id)
		if res.Error != nil {
			return fmt.Errorf("deleting testimony: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTestimonyNotFound
		}
		return nil
	})
}

func (r *repository) MarkProcessing(ctx context.Context, id uint) error {
	return r.transition(ctx, id, map[string]interface{}{
		"transcript_status": models.TranscriptProcessing,
	})
}

func (r *repository) MarkCompleted(ctx context.Context, id uint, transcript string) error {
	if strings.TrimSpace(transcript) == "" {
		return r.MarkCompletedEmpty(ctx, id)
	}
	return r.transition(ctx, id, map[string]interface{}{
		"transcript_status": models.TranscriptCompleted,
		"transcript":        transcript,
	})
}

func (r *repository) MarkCompletedEmpty(ctx context.Context, id uint) error {
	return r.transition(ctx, id, map[string]interface{}{
		"transcript_status": models.TranscriptCompletedEmpty,
		"transcript":        nil,
		"summary":           nil,
		"summary_prompt_id": nil,
	})
}

func (r *repository) MarkFailed(ctx context.Context, id uint) error {
	return r.transition(ctx, id, map[string]interface{}{
		"transcript_status": models.TranscriptFailed,
		"transcript":        nil,
		"summary":           nil,
		"summary_prompt_id": nil,
	})
}

// transition applies updates only while the record is still pending or
// processing, so a late worker can never overwrite a terminal status.
func (r *repository) transition(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.Testimony{}).
		Where("id = ? AND transcript_status IN ?", id, []models.TranscriptStatus{
			models.TranscriptPending,
			models.TranscriptProcessing,
		}).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating testimony status: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyTerminal
}

// SetSummary stores a summary on a completed record. Summaries on any
// other status would break the transcript/summary invariant.
func (r *repository) SetSummary(ctx context.Context, id uint, summary string, promptID *uint) error {
	var summaryValue interface{}
	if strings.TrimSpace(summary) != "" {
		summaryValue = summary
	} else {
		promptID = nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.Testimony{}).
		Where("id = ? AND transcript_status = ?", id, models.TranscriptCompleted).
		Updates(map[string]interface{}{
			"summary":           summaryValue,
			"summary_prompt_id": promptID,
		})
	if res.Error != nil {
		return fmt.Errorf("setting summary: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("testimony %d is not completed", id)
	}
	return nil
}

func (r *repository) ListCompleted(ctx context.Context, filter CompletedFilter) ([]models.Testimony, error) {
	query := r.db.WithContext(ctx).
		Where("transcript_status = ?", models.TranscriptCompleted)

	if filter.WithSummary {
		query = query.Where("summary IS NOT NULL AND summary <> ''")
	}
	if filter.WithoutSummary {
		query = query.Where("(summary IS NULL OR summary = '')")
	}
	if filter.PromptNot != nil {
		query = query.Where("(summary_prompt_id IS NULL OR summary_prompt_id <> ?)", *filter.PromptNot)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []models.Testimony
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing completed testimonies: %w", err)
	}
	return rows, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`%`, ``, `"`, ``).Replace(s)
}
