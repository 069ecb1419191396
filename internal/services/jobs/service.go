package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/pkg/clock"
	"github.com/killallgit/testimony-api/pkg/logger"
)

const (
	DefaultMaxRetries = 3
	DefaultPriority   = 0
)

type service struct {
	repo  Repository
	clock clock.Clock
	log   *logger.Logger
}

// NewService creates the job service. A nil clock uses wall time and a nil
// logger uses the process default.
func NewService(repo Repository, clk clock.Clock, log *logger.Logger) Service {
	return &service{
		repo:  repo,
		clock: clock.OrReal(clk),
		log:   logger.OrDefault(log).WithComponent("jobs"),
	}
}

func (s *service) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *service) EnqueueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload, opts ...JobOption) (*models.Job, error) {
	cfg := &jobConfig{
		Priority:   DefaultPriority,
		MaxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	job := &models.Job{
		Type:       jobType,
		Status:     models.JobStatusPending,
		Payload:    payload,
		Priority:   cfg.Priority,
		MaxRetries: cfg.MaxRetries,
		CreatedBy:  cfg.CreatedBy,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "type": jobType}).Debug("enqueued job")

	return job, nil
}

func (s *service) GetJob(ctx context.Context, jobID uint) (*models.Job, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return job, nil
}

// FindActiveJobForTestimony returns the newest non-terminal transcription job
// for a testimony, or ErrJobNotFound.
func (s *service) FindActiveJobForTestimony(ctx context.Context, testimonyID uint) (*models.Job, error) {
	return s.repo.GetJobByTypeAndPayload(ctx, models.JobTypeTranscribeTestimony,
		models.PayloadTestimonyID, testimonyID,
		[]models.JobStatus{models.JobStatusPending, models.JobStatusProcessing, models.JobStatusRetrying})
}

func (s *service) ListJobs(ctx context.Context, filter ListFilter) ([]*models.Job, error) {
	jobs, err := s.repo.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

func (s *service) Stats(ctx context.Context) (map[models.JobStatus]int64, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *service) ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType) (*models.Job, error) {
	job, err := s.repo.ClaimNextJob(ctx, workerID, jobTypes, s.now())
	if err != nil {
		if errors.Is(err, ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("claiming job: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"worker":  workerID,
		"attempt": job.Attempts,
	}).Debug("claimed job")

	return job, nil
}

func (s *service) CompleteJob(ctx context.Context, jobID uint, result models.JobResult) error {
	if err := s.repo.CompleteJob(ctx, jobID, result, s.now()); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("completing job: %w", err)
	}

	s.log.WithField("job_id", jobID).Debug("job completed")
	return nil
}

func (s *service) ScheduleRetry(ctx context.Context, jobID uint, delay time.Duration, jobErr *models.StructuredJobError) error {
	now := s.now()
	runAfter := now.Add(delay)

	if err := s.repo.ScheduleRetry(ctx, jobID, runAfter, jobErr, now); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("scheduling retry: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"job_id":    jobID,
		"delay":     delay.String(),
		"run_after": runAfter,
		"error":     errMessage(jobErr),
	}).Warn("job scheduled for retry")
	return nil
}

func (s *service) FailJob(ctx context.Context, jobID uint, jobErr *models.StructuredJobError) error {
	if err := s.repo.FailJob(ctx, jobID, jobErr, s.now()); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("failing job: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"job_id": jobID,
		"error":  errMessage(jobErr),
	}).Error("job failed permanently")
	return nil
}

// FindStaleJobs lists jobs stuck in processing longer than olderThan.
// Jobs are not re-queued automatically; a killed worker may have been
// half way through a provider call.
func (s *service) FindStaleJobs(ctx context.Context, olderThan time.Duration) ([]*models.Job, error) {
	return s.repo.GetProcessingStartedBefore(ctx, s.now().Add(-olderThan))
}

func (s *service) CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)

	deleted, err := s.repo.DeleteOldJobs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up old jobs: %w", err)
	}

	if deleted > 0 {
		s.log.WithFields(logrus.Fields{"deleted": deleted, "retention_days": retentionDays}).Info("deleted old jobs")
	}

	return deleted, nil
}

func errMessage(jobErr *models.StructuredJobError) string {
	if jobErr == nil {
		return ""
	}
	return jobErr.Message
}
