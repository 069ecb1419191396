package jobs

import (
	"context"
	"time"

	"github.com/killallgit/testimony-api/internal/models"
)

// Service is the job queue used between the ingestion gateway and the
// workers. Enqueue returns a handle whose ID can be polled for status.
type Service interface {
	EnqueueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload, opts ...JobOption) (*models.Job, error)

	GetJob(ctx context.Context, jobID uint) (*models.Job, error)
	FindActiveJobForTestimony(ctx context.Context, testimonyID uint) (*models.Job, error)
	ListJobs(ctx context.Context, filter ListFilter) ([]*models.Job, error)
	Stats(ctx context.Context) (map[models.JobStatus]int64, error)

	// Worker operations
	ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType) (*models.Job, error)
	CompleteJob(ctx context.Context, jobID uint, result models.JobResult) error
	ScheduleRetry(ctx context.Context, jobID uint, delay time.Duration, jobErr *models.StructuredJobError) error
	FailJob(ctx context.Context, jobID uint, jobErr *models.StructuredJobError) error

	// Maintenance
	FindStaleJobs(ctx context.Context, olderThan time.Duration) ([]*models.Job, error)
	CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error)
}

// ListFilter narrows ListJobs
type ListFilter struct {
	Status models.JobStatus
	Type   models.JobType
	Limit  int
}

// JobOption is a functional option for configuring jobs
type JobOption func(*jobConfig)

type jobConfig struct {
	Priority   int
	MaxRetries int
	CreatedBy  string
}

// WithPriority sets the priority of a job (higher = more priority)
func WithPriority(priority int) JobOption {
	return func(cfg *jobConfig) {
		cfg.Priority = priority
	}
}

// WithMaxRetries sets the maximum number of retries for a job
func WithMaxRetries(retries int) JobOption {
	return func(cfg *jobConfig) {
		cfg.MaxRetries = retries
	}
}

// WithCreatedBy sets who created the job
func WithCreatedBy(createdBy string) JobOption {
	return func(cfg *jobConfig) {
		cfg.CreatedBy = createdBy
	}
}
