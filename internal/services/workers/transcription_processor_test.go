package workers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/jobs"
	"github.com/killallgit/testimony-api/internal/services/storage"
	"github.com/killallgit/testimony-api/internal/services/summary"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	"github.com/killallgit/testimony-api/internal/services/transcription"
	"github.com/killallgit/testimony-api/internal/testutil"
	"github.com/killallgit/testimony-api/pkg/clock"
	"github.com/killallgit/testimony-api/pkg/logger"
	"github.com/killallgit/testimony-api/pkg/providers"
)

type fakeTranscriber struct {
	mu     sync.Mutex
	calls  int
	paths  []string
	script []func() (*transcription.Result, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, in transcription.AudioInput) (*transcription.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, statErr := os.Stat(in.Path)
	if statErr != nil {
		return nil, statErr
	}
	f.paths = append(f.paths, in.Path)

	step := f.script[min(f.calls, len(f.script)-1)]
	f.calls++
	return step()
}

func text(s string) func() (*transcription.Result, error) {
	return func() (*transcription.Result, error) {
		return &transcription.Result{Text: s, Model: "whisper-1"}, nil
	}
}

func failWith(err error) func() (*transcription.Result, error) {
	return func() (*transcription.Result, error) { return nil, err }
}

type fakeSummarizer struct {
	calls int
	out   summary.Summary
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string) summary.Summary {
	f.calls++
	return f.out
}

type fakeIndexer struct {
	indexed  map[uint]string
	embedded map[uint]string
	indexErr error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: map[uint]string{}, embedded: map[uint]string{}}
}

func (f *fakeIndexer) IndexTranscript(ctx context.Context, id uint, transcript string) (int, error) {
	if f.indexErr != nil {
		return 0, f.indexErr
	}
	f.indexed[id] = transcript
	return 1, nil
}

func (f *fakeIndexer) EmbedSummary(ctx context.Context, id uint, text string) error {
	f.embedded[id] = text
	return nil
}

type pipeline struct {
	db          *gorm.DB
	clock       *clock.ManagedClock
	jobs        jobs.Service
	repo        testimonies.Repository
	store       *storage.FilesystemStore
	transcriber *fakeTranscriber
	summarizer  *fakeSummarizer
	indexer     *fakeIndexer
	worker      *Worker
	tempDir     string
}

func newPipeline(t *testing.T, script ...func() (*transcription.Result, error)) *pipeline {
	t.Helper()

	db := testutil.NewDB(t)
	clk := clock.NewManaged(time.Date(2025, 5, 4, 9, 0, 0, 0, time.UTC))
	log := logger.Discard()

	store, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	p := &pipeline{
		db:          db,
		clock:       clk,
		jobs:        jobs.NewService(jobs.NewRepository(db), clk, log),
		repo:        testimonies.NewRepository(db),
		store:       store,
		transcriber: &fakeTranscriber{script: script},
		summarizer:  &fakeSummarizer{},
		indexer:     newFakeIndexer(),
		tempDir:     t.TempDir(),
	}

	processor := NewTranscriptionProcessor(p.jobs, p.repo, p.store, p.transcriber, p.summarizer, p.indexer,
		TranscriptionOptions{TempDir: p.tempDir, Language: "es"}, log)

	p.worker = NewWorker("worker-test", p.jobs, time.Millisecond, log)
	p.worker.RegisterProcessor(processor)
	return p
}

// submit stores audio, creates a pending testimony and enqueues its job
func (p *pipeline) submit(t *testing.T) (*models.Testimony, *models.Job) {
	t.Helper()
	ctx := context.Background()

	locator, err := p.store.Put(ctx, "testimony_audio/a.mp3", []byte("ID3 fake audio"), "audio/mpeg")
	require.NoError(t, err)

	tm := testutil.CreateTestimony(t, p.db, func(tm *models.Testimony) {
		tm.AudioURL = locator
	})
	job, err := p.jobs.EnqueueJob(ctx, models.JobTypeTranscribeTestimony, models.JobPayload{
		models.PayloadTestimonyID: tm.ID,
		models.PayloadAudioURL:    locator,
	})
	require.NoError(t, err)
	return tm, job
}

func (p *pipeline) testimony(t *testing.T, id uint) *models.Testimony {
	t.Helper()
	tm, err := p.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return tm
}

func (p *pipeline) job(t *testing.T, id uint) *models.Job {
	t.Helper()
	job, err := p.jobs.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func TestProcessorCompletesTestimony(t *testing.T) {
	p := newPipeline(t, text("Dios me sanó del cáncer"))
	p.summarizer.out = summary.Summary{Text: "La hermana fue sanada.\nEtiquetas: sanidad", PromptID: nil}
	tm, job := p.submit(t)

	processed, err := p.worker.ProcessNext(context.Background())
	require.True(t, processed)
	require.NoError(t, err)

	got := p.testimony(t, tm.ID)
	assert.Equal(t, models.TranscriptCompleted, got.TranscriptStatus)
	assert.Equal(t, "Dios me sanó del cáncer", got.TranscriptText())
	assert.Equal(t, "La hermana fue sanada.\nEtiquetas: sanidad", got.SummaryText())

	assert.Equal(t, "Dios me sanó del cáncer", p.indexer.indexed[tm.ID])
	assert.Equal(t, got.SummaryText(), p.indexer.embedded[tm.ID])

	settled := p.job(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, settled.Status)
	assert.Equal(t, models.PollSuccess, settled.PollState())
	assert.Equal(t, true, settled.Result["summary"])

	entries, err := os.ReadDir(p.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged audio is removed")
}

func TestProcessorTimeoutRetriedThreeTimesThenFails(t *testing.T) {
	p := newPipeline(t, failWith(&providers.Error{Provider: "openai", StatusCode: http.StatusGatewayTimeout, Message: "upstream timed out"}))
	tm, job := p.submit(t)
	ctx := context.Background()

	policy := DefaultRetryPolicy()
	for retry := 0; retry < policy.MaxRetries; retry++ {
		processed, err := p.worker.ProcessNext(ctx)
		require.True(t, processed)

		var scheduled *RetryScheduledError
		require.ErrorAs(t, err, &scheduled)
		assert.Equal(t, policy.BaseDelay*time.Duration(retry+1), scheduled.Delay)

		waiting := p.job(t, job.ID)
		assert.Equal(t, models.JobStatusRetrying, waiting.Status)
		assert.Equal(t, models.PollRetry, waiting.PollState())
		assert.Equal(t, retry+1, waiting.RetryCount)
		assert.Equal(t, models.TranscriptProcessing, p.testimony(t, tm.ID).TranscriptStatus)

		// Not runnable until the backoff has elapsed
		processed, err = p.worker.ProcessNext(ctx)
		require.NoError(t, err)
		assert.False(t, processed)

		p.clock.WarpForward(scheduled.Delay + time.Second)
	}

	processed, err := p.worker.ProcessNext(ctx)
	require.True(t, processed)
	require.Error(t, err)

	var jobErr *models.StructuredJobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, models.ErrorTypeTransient, jobErr.Type)
	assert.Equal(t, "http_504", jobErr.Code)

	failed := p.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.Equal(t, models.PollFailure, failed.PollState())
	assert.Equal(t, 3, failed.RetryCount)
	assert.Equal(t, 4, failed.Attempts)

	got := p.testimony(t, tm.ID)
	assert.Equal(t, models.TranscriptFailed, got.TranscriptStatus)
	assert.Nil(t, got.Transcript)
	assert.Equal(t, 4, p.transcriber.calls)
	assert.Zero(t, p.summarizer.calls)

	stats := p.worker.Stats()
	assert.Equal(t, int64(4), stats.Processed)
	assert.Equal(t, int64(3), stats.Retried)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestProcessorRecoversAfterTransientError(t *testing.T) {
	p := newPipeline(t,
		failWith(errors.New("429 Too Many Requests")),
		text("Gloria a Dios"),
	)
	tm, job := p.submit(t)
	ctx := context.Background()

	_, err := p.worker.ProcessNext(ctx)
	var scheduled *RetryScheduledError
	require.ErrorAs(t, err, &scheduled)

	p.clock.WarpForward(scheduled.Delay)
	processed, err := p.worker.ProcessNext(ctx)
	require.True(t, processed)
	require.NoError(t, err)

	assert.Equal(t, models.TranscriptCompleted, p.testimony(t, tm.ID).TranscriptStatus)
	assert.Equal(t, models.JobStatusCompleted, p.job(t, job.ID).Status)
}

func TestProcessorNonTransientErrorFailsImmediately(t *testing.T) {
	p := newPipeline(t, failWith(&providers.Error{Provider: "openai", StatusCode: http.StatusUnauthorized, Message: "invalid api key"}))
	tm, job := p.submit(t)

	_, err := p.worker.ProcessNext(context.Background())
	require.Error(t, err)

	var scheduled *RetryScheduledError
	assert.False(t, errors.As(err, &scheduled))

	failed := p.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.Equal(t, 0, failed.RetryCount)
	assert.Equal(t, string(models.ErrorTypeProvider), failed.ErrorType)
	assert.Equal(t, models.TranscriptFailed, p.testimony(t, tm.ID).TranscriptStatus)
}

func TestProcessorEmptyTranscript(t *testing.T) {
	p := newPipeline(t, text(""))
	tm, job := p.submit(t)

	_, err := p.worker.ProcessNext(context.Background())
	require.NoError(t, err)

	got := p.testimony(t, tm.ID)
	assert.Equal(t, models.TranscriptCompletedEmpty, got.TranscriptStatus)
	assert.Nil(t, got.Transcript)
	assert.Nil(t, got.Summary)

	assert.Zero(t, p.summarizer.calls, "no summary for an empty transcript")
	assert.Empty(t, p.indexer.indexed)
	assert.Empty(t, p.indexer.embedded)

	settled := p.job(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, settled.Status)
	assert.Equal(t, string(models.TranscriptCompletedEmpty), settled.Result["status"])
}

func TestProcessorDegradesOnSummaryAndIndexFailures(t *testing.T) {
	p := newPipeline(t, text("Mi familia fue restaurada"))
	p.indexer.indexErr = errors.New("database is locked")
	tm, job := p.submit(t)

	_, err := p.worker.ProcessNext(context.Background())
	require.NoError(t, err)

	got := p.testimony(t, tm.ID)
	assert.Equal(t, models.TranscriptCompleted, got.TranscriptStatus)
	assert.Nil(t, got.Summary)
	assert.Equal(t, 1, p.summarizer.calls)
	assert.Empty(t, p.indexer.embedded)
	assert.Equal(t, models.JobStatusCompleted, p.job(t, job.ID).Status)
}

func TestProcessorMissingAudioFails(t *testing.T) {
	p := newPipeline(t, text("nunca"))
	tm, job := p.submit(t)
	require.NoError(t, p.store.Delete(context.Background(), tm.AudioURL))

	_, err := p.worker.ProcessNext(context.Background())
	require.Error(t, err)

	assert.Equal(t, models.JobStatusFailed, p.job(t, job.ID).Status)
	assert.Equal(t, models.TranscriptFailed, p.testimony(t, tm.ID).TranscriptStatus)
	assert.Zero(t, p.transcriber.calls)
}

func TestProcessorSkipsSettledTestimony(t *testing.T) {
	p := newPipeline(t, text("otra vez"))
	tm, job := p.submit(t)
	require.NoError(t, p.repo.MarkCompleted(context.Background(), tm.ID, "ya transcrito"))

	_, err := p.worker.ProcessNext(context.Background())
	require.NoError(t, err)

	settled := p.job(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, settled.Status)
	assert.Equal(t, true, settled.Result["skipped"])
	assert.Zero(t, p.transcriber.calls)
	assert.Equal(t, "ya transcrito", p.testimony(t, tm.ID).TranscriptText())
}

func TestProcessorMissingTestimony(t *testing.T) {
	p := newPipeline(t, text("x"))
	job, err := p.jobs.EnqueueJob(context.Background(), models.JobTypeTranscribeTestimony, models.JobPayload{
		models.PayloadTestimonyID: 999,
	})
	require.NoError(t, err)

	_, err = p.worker.ProcessNext(context.Background())
	require.Error(t, err)

	failed := p.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.Equal(t, string(models.ErrorTypeNotFound), failed.ErrorType)
}

func TestProcessorLeavesJobClaimedOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newPipeline(t, func() (*transcription.Result, error) {
		cancel()
		return nil, context.Canceled
	})
	tm, job := p.submit(t)

	processed, err := p.worker.ProcessNext(ctx)
	require.True(t, processed)
	require.ErrorIs(t, err, context.Canceled)

	var scheduled *RetryScheduledError
	assert.False(t, errors.As(err, &scheduled))

	interrupted := p.job(t, job.ID)
	assert.Equal(t, models.JobStatusProcessing, interrupted.Status)
	assert.Zero(t, interrupted.RetryCount)
	assert.Empty(t, interrupted.ErrorType)
	assert.Equal(t, models.TranscriptProcessing, p.testimony(t, tm.ID).TranscriptStatus)
}

func TestProcessorJobTimeoutSchedulesRetry(t *testing.T) {
	p := newPipeline(t, func() (*transcription.Result, error) {
		time.Sleep(200 * time.Millisecond)
		return nil, errors.New("stream closed")
	})
	p.worker.SetJobTimeout(50 * time.Millisecond)
	tm, job := p.submit(t)

	processed, err := p.worker.ProcessNext(context.Background())
	require.True(t, processed)

	var scheduled *RetryScheduledError
	require.ErrorAs(t, err, &scheduled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	waiting := p.job(t, job.ID)
	assert.Equal(t, models.JobStatusRetrying, waiting.Status)
	assert.Equal(t, 1, waiting.RetryCount)
	assert.Equal(t, models.TranscriptProcessing, p.testimony(t, tm.ID).TranscriptStatus)
}
