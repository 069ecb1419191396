package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/jobs"
	"github.com/killallgit/testimony-api/internal/services/storage"
	"github.com/killallgit/testimony-api/internal/services/summary"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	"github.com/killallgit/testimony-api/internal/services/transcription"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// Summarizer produces a summary for a transcript. An empty Text means no
// summary could be produced.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) summary.Summary
}

// Indexer stores search artifacts for a completed testimony
type Indexer interface {
	IndexTranscript(ctx context.Context, testimonyID uint, transcript string) (int, error)
	EmbedSummary(ctx context.Context, testimonyID uint, summaryText string) error
}

// TranscriptionOptions configures TranscriptionProcessor
type TranscriptionOptions struct {
	TempDir  string
	Language string
	Policy   RetryPolicy
}

// TranscriptionProcessor runs a testimony through transcription, summary
// and indexing. Status moves pending -> processing -> completed,
// completed_empty or failed; transient failures leave it processing while
// the job waits for its retry.
type TranscriptionProcessor struct {
	jobService  jobs.Service
	testimonies testimonies.Repository
	store       storage.Store
	transcriber transcription.Transcriber
	summarizer  Summarizer
	indexer     Indexer
	opts        TranscriptionOptions
	log         *logger.Logger
}

// NewTranscriptionProcessor creates a new transcription processor.
// summarizer and indexer may be nil; those steps are then skipped.
func NewTranscriptionProcessor(
	jobService jobs.Service,
	repo testimonies.Repository,
	store storage.Store,
	transcriber transcription.Transcriber,
	summarizer Summarizer,
	indexer Indexer,
	opts TranscriptionOptions,
	log *logger.Logger,
) *TranscriptionProcessor {
	if opts.Policy.MaxRetries == 0 && opts.Policy.BaseDelay == 0 {
		opts.Policy = DefaultRetryPolicy()
	}
	return &TranscriptionProcessor{
		jobService:  jobService,
		testimonies: repo,
		store:       store,
		transcriber: transcriber,
		summarizer:  summarizer,
		indexer:     indexer,
		opts:        opts,
		log:         logger.OrDefault(log).WithComponent("transcription_processor"),
	}
}

// CanProcess returns true if this processor can handle the job type
func (p *TranscriptionProcessor) CanProcess(jobType models.JobType) bool {
	return jobType == models.JobTypeTranscribeTestimony
}

// ProcessJob processes a transcription job
func (p *TranscriptionProcessor) ProcessJob(ctx context.Context, job *models.Job) error {
	if !p.CanProcess(job.Type) {
		return fmt.Errorf("unsupported job type: %s", job.Type)
	}

	testimonyID, ok := job.GetPayloadUint(models.PayloadTestimonyID)
	if !ok {
		return p.fail(ctx, job, 0, models.NewJobError(models.ErrorTypeSystem, "invalid_payload",
			"testimony_id missing from payload", nil))
	}
	log := p.log.WithFields(logrus.Fields{"job_id": job.ID, "testimony_id": testimonyID, "attempt": job.Attempts})

	t, err := p.testimonies.Get(ctx, testimonyID)
	if err != nil {
		if errors.Is(err, testimonies.ErrTestimonyNotFound) {
			return p.fail(ctx, job, 0, models.NewJobError(models.ErrorTypeNotFound, "testimony_not_found", err.Error(), err))
		}
		return p.retryOrFail(ctx, job, 0, models.ErrorTypeSystem, err)
	}

	// A redelivered job for a finished record has nothing left to do
	if t.TranscriptStatus.IsTerminal() {
		log.WithField("status", t.TranscriptStatus).Info("testimony already settled, skipping")
		return p.jobService.CompleteJob(ctx, job.ID, models.JobResult{
			"status":  string(t.TranscriptStatus),
			"skipped": true,
		})
	}

	audioURL, _ := job.GetPayloadString(models.PayloadAudioURL)
	if audioURL == "" {
		audioURL = t.AudioURL
	}

	if err := p.testimonies.MarkProcessing(ctx, t.ID); err != nil {
		return p.retryOrFail(ctx, job, t.ID, models.ErrorTypeSystem, err)
	}

	path, cleanup, err := storage.StageToTemp(ctx, p.store, audioURL, p.opts.TempDir)
	defer cleanup()
	if err != nil {
		if errors.Is(err, storage.ErrNoObject) || errors.Is(err, storage.ErrUnsupportedLocator) {
			return p.fail(ctx, job, t.ID, models.NewJobError(models.ErrorTypeStorage, "audio_missing", err.Error(), err))
		}
		return p.retryOrFail(ctx, job, t.ID, models.ErrorTypeStorage, err)
	}

	started := time.Now()
	res, err := p.transcriber.Transcribe(ctx, transcription.AudioInput{
		Path:     path,
		FileName: t.UserFileName,
		Language: p.opts.Language,
	})
	if err != nil {
		return p.retryOrFail(ctx, job, t.ID, models.ErrorTypeProvider, err)
	}
	log = log.WithField("transcribe_ms", time.Since(started).Milliseconds())

	if res.Text == "" {
		if err := p.testimonies.MarkCompletedEmpty(ctx, t.ID); err != nil {
			return p.retryOrFail(ctx, job, t.ID, models.ErrorTypeSystem, err)
		}
		log.Warn("provider returned no text, marked completed_empty")
		return p.jobService.CompleteJob(ctx, job.ID, models.JobResult{
			"status":       string(models.TranscriptCompletedEmpty),
			"testimony_id": t.ID,
		})
	}

	if err := p.testimonies.MarkCompleted(ctx, t.ID, res.Text); err != nil {
		return p.retryOrFail(ctx, job, t.ID, models.ErrorTypeSystem, err)
	}

	result := models.JobResult{
		"status":           string(models.TranscriptCompleted),
		"testimony_id":     t.ID,
		"transcript_chars": len(res.Text),
		"model":            res.Model,
	}

	summaryText := p.summarize(ctx, log, t.ID, res.Text)
	result["summary"] = summaryText != ""

	if p.indexer != nil {
		if summaryText != "" {
			if err := p.indexer.EmbedSummary(ctx, t.ID, summaryText); err != nil {
				log.WithError(err).Warn("summary embedding failed")
			}
		}
		n, err := p.indexer.IndexTranscript(ctx, t.ID, res.Text)
		if err != nil {
			log.WithError(err).Warn("transcript indexing failed, left for backfill")
		}
		result["chunks"] = n
	}

	if err := p.jobService.CompleteJob(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	log.WithField("chars", len(res.Text)).Info("testimony transcribed")
	return nil
}

func (p *TranscriptionProcessor) summarize(ctx context.Context, log *logrus.Entry, testimonyID uint, transcript string) string {
	if p.summarizer == nil {
		return ""
	}

	s := p.summarizer.Summarize(ctx, transcript)
	if s.Text == "" {
		log.Warn("no summary produced")
		return ""
	}

	if err := p.testimonies.SetSummary(ctx, testimonyID, s.Text, s.PromptID); err != nil {
		log.WithError(err).Warn("failed to store summary")
		return ""
	}
	return s.Text
}

// retryOrFail applies the retry policy to a failed attempt
func (p *TranscriptionProcessor) retryOrFail(ctx context.Context, job *models.Job, testimonyID uint, errType models.JobErrorType, cause error) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.Canceled):
		// Shutdown is not a failed attempt; the claim is left for the stale job sweep
		return fmt.Errorf("job %d interrupted: %w", job.ID, err)
	case err != nil:
		// The attempt ran out of time; settle it outside the expired context
		ctx = context.WithoutCancel(ctx)
		if !errors.Is(cause, context.DeadlineExceeded) {
			cause = fmt.Errorf("%w: %w", err, cause)
		}
	}

	policy := p.opts.Policy
	if job.MaxRetries > 0 {
		policy.MaxRetries = job.MaxRetries
	}

	delay, retry := policy.Decide(job.RetryCount, cause)
	if !retry {
		if IsTransient(cause) {
			errType = models.ErrorTypeTransient
		}
		return p.fail(ctx, job, testimonyID, models.NewJobError(errType, errorCode(cause), cause.Error(), cause))
	}

	jobErr := models.NewJobError(models.ErrorTypeTransient, errorCode(cause), cause.Error(), cause)
	jobErr.Details = fmt.Sprintf("retry %d of %d in %s: %v", job.RetryCount+1, policy.MaxRetries, delay, cause)
	if err := p.jobService.ScheduleRetry(ctx, job.ID, delay, jobErr); err != nil {
		return fmt.Errorf("scheduling retry after %v: %w", cause, err)
	}
	return &RetryScheduledError{Delay: delay, Err: cause}
}

// fail settles both the testimony and the job as failed
func (p *TranscriptionProcessor) fail(ctx context.Context, job *models.Job, testimonyID uint, jobErr *models.StructuredJobError) error {
	if testimonyID != 0 {
		if err := p.testimonies.MarkFailed(ctx, testimonyID); err != nil && !errors.Is(err, testimonies.ErrAlreadyTerminal) {
			p.log.WithError(err).WithField("testimony_id", testimonyID).Error("failed to mark testimony failed")
		}
	}
	if err := p.jobService.FailJob(ctx, job.ID, jobErr); err != nil {
		p.log.WithError(err).WithField("job_id", job.ID).Error("failed to mark job failed")
	}
	return jobErr
}
