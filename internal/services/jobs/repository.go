package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/killallgit/testimony-api/internal/models"
)

// Repository errors
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrNoJobsAvailable = errors.New("no jobs available")
)

// Repository defines the interface for job persistence
type Repository interface {
	CreateJob(ctx context.Context, job *models.Job) error

	GetJob(ctx context.Context, id uint) (*models.Job, error)
	GetJobByTypeAndPayload(ctx context.Context, jobType models.JobType, key string, value interface{}, statuses []models.JobStatus) (*models.Job, error)
	ListJobs(ctx context.Context, filter ListFilter) ([]*models.Job, error)
	CountByStatus(ctx context.Context) (map[models.JobStatus]int64, error)
	GetProcessingStartedBefore(ctx context.Context, before time.Time) ([]*models.Job, error)

	ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType, now time.Time) (*models.Job, error)
	CompleteJob(ctx context.Context, jobID uint, result models.JobResult, now time.Time) error
	ScheduleRetry(ctx context.Context, jobID uint, runAfter time.Time, jobErr *models.StructuredJobError, now time.Time) error
	FailJob(ctx context.Context, jobID uint, jobErr *models.StructuredJobError, now time.Time) error

	DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new job repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

func (r *repository) CreateJob(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).First(&job, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return &job, nil
}

// GetJobByTypeAndPayload finds the newest job of a type whose payload key
// matches value, optionally restricted to statuses.
func (r *repository) GetJobByTypeAndPayload(ctx context.Context, jobType models.JobType, key string, value interface{}, statuses []models.JobStatus) (*models.Job, error) {
	var job models.Job

	// json_extract works on sqlite; postgres uses the ->> operator
	expr := "json_extract(payload, ?) = ?"
	arg := interface{}("$." + key)
	if r.db.Dialector.Name() == "postgres" {
		expr = "payload::jsonb ->> ? = ?"
		arg = key
		value = fmt.Sprint(value)
	}

	query := r.db.WithContext(ctx).
		Where("type = ?", jobType).
		Where(expr, arg, value)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	if err := query.Order("id DESC").First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("getting job by type and payload: %w", err)
	}

	return &job, nil
}

func (r *repository) ListJobs(ctx context.Context, filter ListFilter) ([]*models.Job, error) {
	var jobs []*models.Job
	query := r.db.WithContext(ctx).Order("created_at DESC")

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	err := query.Find(&jobs).Error
	return jobs, err
}

func (r *repository) CountByStatus(ctx context.Context) (map[models.JobStatus]int64, error) {
	var rows []struct {
		Status models.JobStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}

	out := make(map[models.JobStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *repository) GetProcessingStartedBefore(ctx context.Context, before time.Time) ([]*models.Job, error) {
	var jobs []*models.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.JobStatusProcessing, before).
		Order("started_at ASC").
		Find(&jobs).Error
	return jobs, err
}

// ClaimNextJob atomically claims the next runnable job for a worker.
// A job is runnable when pending, or when retrying and its RunAfter has passed.
func (r *repository) ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType, now time.Time) (*models.Job, error) {
	var job models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? OR (status = ? AND (run_after IS NULL OR run_after <= ?))",
				models.JobStatusPending, models.JobStatusRetrying, now)

		if len(jobTypes) > 0 {
			query = query.Where("type IN ?", jobTypes)
		}

		err := query.Order("priority DESC, created_at ASC, id ASC").First(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoJobsAvailable
			}
			return fmt.Errorf("finding job to claim: %w", err)
		}

		updates := map[string]interface{}{
			"status":     models.JobStatusProcessing,
			"worker_id":  workerID,
			"started_at": now,
			"attempts":   job.Attempts + 1,
		}

		// Guard on the status we read so two claimers can't both win
		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, job.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("updating claimed job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNoJobsAvailable
		}

		job.Status = models.JobStatusProcessing
		job.WorkerID = workerID
		job.StartedAt = &now
		job.Attempts++
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &job, nil
}

func (r *repository) CompleteJob(ctx context.Context, jobID uint, result models.JobResult, now time.Time) error {
	updates := map[string]interface{}{
		"status":       models.JobStatusCompleted,
		"completed_at": now,
		"result":       result,
		"worker_id":    "",
	}

	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Updates(updates)

	if res.Error != nil {
		return fmt.Errorf("completing job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ScheduleRetry parks a job until runAfter and counts the retry
func (r *repository) ScheduleRetry(ctx context.Context, jobID uint, runAfter time.Time, jobErr *models.StructuredJobError, now time.Time) error {
	updates := errorUpdates(jobErr, now)
	updates["status"] = models.JobStatusRetrying
	updates["run_after"] = runAfter
	updates["retry_count"] = gorm.Expr("retry_count + 1")

	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("scheduling retry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// FailJob marks a job as terminally failed
func (r *repository) FailJob(ctx context.Context, jobID uint, jobErr *models.StructuredJobError, now time.Time) error {
	updates := errorUpdates(jobErr, now)
	updates["status"] = models.JobStatusFailed
	updates["completed_at"] = now
	updates["run_after"] = nil

	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failing job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func errorUpdates(jobErr *models.StructuredJobError, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"last_failed_at": now,
		"worker_id":      "",
	}
	if jobErr != nil {
		updates["error"] = jobErr.Message
		updates["error_type"] = string(jobErr.Type)
		updates["error_code"] = jobErr.Code
		updates["error_details"] = jobErr.Details
	}
	return updates
}

// DeleteOldJobs deletes terminal jobs created before olderThan
func (r *repository) DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", olderThan).
		Where("status IN ?", []models.JobStatus{
			models.JobStatusCompleted,
			models.JobStatusFailed,
		}).
		Delete(&models.Job{})

	if result.Error != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", result.Error)
	}

	return result.RowsAffected, nil
}
