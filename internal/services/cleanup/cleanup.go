package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/pkg/clock"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// StagedPrefix marks temp files written by storage.WriteTemp
const StagedPrefix = "staged_"

// JobMaintainer is the part of the job service the sweep uses
type JobMaintainer interface {
	FindStaleJobs(ctx context.Context, olderThan time.Duration) ([]*models.Job, error)
	CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error)
}

// Options configures the sweep
type Options struct {
	TempDir       string
	MaxAge        time.Duration // staged files older than this are removed
	Interval      time.Duration
	StaleJobAfter time.Duration // processing jobs older than this are reported
	RetentionDays int           // finished jobs older than this are deleted, 0 keeps them
}

// Report is the outcome of one sweep
type Report struct {
	FilesRemoved int
	StaleJobs    []uint
	JobsDeleted  int64
}

// Service periodically removes leftover staged audio and reports jobs
// stuck in processing. Stuck jobs are not retried automatically.
type Service struct {
	opts  Options
	jobs  JobMaintainer
	clock clock.Clock
	log   *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new cleanup service. jobs may be nil.
func NewService(opts Options, jobs JobMaintainer, clk clock.Clock, log *logger.Logger) *Service {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 6 * time.Hour
	}
	return &Service{
		opts:  opts,
		jobs:  jobs,
		clock: clock.OrReal(clk),
		log:   logger.OrDefault(log).WithComponent("cleanup"),
	}
}

// Start runs a sweep now and then every interval until Stop or ctx ends
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.Sweep(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				s.log.Info("Cleanup service stopped")
				return
			}
		}
	}()

	s.log.WithFields(logrus.Fields{
		"interval": s.opts.Interval.String(),
		"max_age":  s.opts.MaxAge.String(),
	}).Info("Cleanup service started")
}

// Stop stops the cleanup service
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Sweep runs one cleanup pass
func (s *Service) Sweep(ctx context.Context) Report {
	var report Report
	report.FilesRemoved = s.removeStagedFiles()

	if s.jobs == nil {
		return report
	}

	if s.opts.StaleJobAfter > 0 {
		stale, err := s.jobs.FindStaleJobs(ctx, s.opts.StaleJobAfter)
		if err != nil {
			s.log.WithError(err).Warn("Failed to look up stale jobs")
		}
		for _, job := range stale {
			report.StaleJobs = append(report.StaleJobs, job.ID)
			s.log.WithFields(logrus.Fields{
				"job_id":     job.ID,
				"worker_id":  job.WorkerID,
				"started_at": job.StartedAt,
			}).Warn("Job stuck in processing")
		}
	}

	if s.opts.RetentionDays > 0 {
		deleted, err := s.jobs.CleanupOldJobs(ctx, s.opts.RetentionDays)
		if err != nil {
			s.log.WithError(err).Warn("Failed to delete old jobs")
		}
		report.JobsDeleted = deleted
	}
	return report
}

func (s *Service) removeStagedFiles() int {
	if s.opts.TempDir == "" {
		return 0
	}
	if _, err := os.Stat(s.opts.TempDir); os.IsNotExist(err) {
		return 0
	}

	now := s.clock.Now()
	removed := 0
	err := filepath.Walk(s.opts.TempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasPrefix(info.Name(), StagedPrefix) {
			return nil
		}
		if now.Sub(info.ModTime()) <= s.opts.MaxAge {
			return nil
		}

		if err := os.Remove(path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("Failed to remove staged file")
			return nil
		}
		removed++
		s.log.WithField("path", path).Debug("Removed staged file")
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("Cleanup walk error")
	}
	return removed
}
