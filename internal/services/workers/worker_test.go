package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/jobs"
	"github.com/killallgit/testimony-api/internal/testutil"
	"github.com/killallgit/testimony-api/pkg/logger"
)

type funcProcessor struct {
	jobs jobs.Service
	fn   func(ctx context.Context, job *models.Job) error
}

func (p *funcProcessor) CanProcess(t models.JobType) bool {
	return t == models.JobTypeTranscribeTestimony
}

func (p *funcProcessor) ProcessJob(ctx context.Context, job *models.Job) error {
	if err := p.fn(ctx, job); err != nil {
		return err
	}
	return p.jobs.CompleteJob(ctx, job.ID, models.JobResult{"ok": true})
}

func newJobService(t *testing.T) jobs.Service {
	db := testutil.NewDB(t)
	return jobs.NewService(jobs.NewRepository(db), nil, logger.Discard())
}

func TestWorkerWithoutProcessors(t *testing.T) {
	w := NewWorker("w", newJobService(t), 0, logger.Discard())
	_, err := w.ProcessNext(context.Background())
	assert.Error(t, err)
}

func TestWorkerEmptyQueue(t *testing.T) {
	svc := newJobService(t)
	w := NewWorker("w", svc, 0, logger.Discard())
	w.RegisterProcessor(&funcProcessor{jobs: svc, fn: func(context.Context, *models.Job) error { return nil }})

	processed, err := w.ProcessNext(context.Background())
	assert.NoError(t, err)
	assert.False(t, processed)
	assert.Zero(t, w.Stats().Processed)
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	svc := newJobService(t)
	ctx := context.Background()
	job, err := svc.EnqueueJob(ctx, models.JobTypeTranscribeTestimony, models.JobPayload{models.PayloadTestimonyID: 1})
	require.NoError(t, err)

	w := NewWorker("w", svc, 0, logger.Discard())
	w.RegisterProcessor(&funcProcessor{jobs: svc, fn: func(context.Context, *models.Job) error {
		panic("boom")
	}})

	processed, err := w.ProcessNext(ctx)
	assert.True(t, processed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	got, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "worker_error", got.ErrorCode)

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.False(t, stats.Busy)
	assert.Nil(t, stats.CurrentJob)
}

func TestWorkerPoolDrainsQueue(t *testing.T) {
	svc := newJobService(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := svc.EnqueueJob(ctx, models.JobTypeTranscribeTestimony, models.JobPayload{models.PayloadTestimonyID: i})
		require.NoError(t, err)
	}

	pool := NewWorkerPool(svc, 2, 5*time.Millisecond, logger.Discard())
	pool.RegisterProcessor(&funcProcessor{jobs: svc, fn: func(ctx context.Context, job *models.Job) error {
		if id, _ := job.GetPayloadUint(models.PayloadTestimonyID); id == 3 {
			err := errors.New("unrecoverable")
			svc.FailJob(ctx, job.ID, models.NewJobError(models.ErrorTypeSystem, "test", err.Error(), err))
			return err
		}
		return nil
	}})

	require.NoError(t, pool.Start(ctx))
	assert.Error(t, pool.Start(ctx), "second start is rejected")

	require.Eventually(t, func() bool {
		return pool.Stats().Processed == 5
	}, 5*time.Second, 10*time.Millisecond)

	pool.Stop()

	stats := pool.Stats()
	assert.False(t, stats.Running)
	assert.Equal(t, 2, stats.Workers)
	assert.Len(t, stats.PerWorker, 2)
	assert.Equal(t, int64(4), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Failed)

	counts, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[models.JobStatusCompleted])
	assert.Equal(t, int64(1), counts[models.JobStatusFailed])
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	svc := newJobService(t)
	w := NewWorker("w", svc, time.Millisecond, logger.Discard())
	w.RegisterProcessor(&funcProcessor{jobs: svc, fn: func(context.Context, *models.Job) error { return nil }})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerJobTimeout(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{name: "unbounded", timeout: 0, wantDeadline: false},
		{name: "bounded", timeout: time.Minute, wantDeadline: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newJobService(t)
			ctx := context.Background()
			_, err := svc.EnqueueJob(ctx, models.JobTypeTranscribeTestimony, models.JobPayload{models.PayloadTestimonyID: 1})
			require.NoError(t, err)

			pool := NewWorkerPool(svc, 1, time.Millisecond, logger.Discard())
			pool.SetJobTimeout(tt.timeout)

			var hasDeadline bool
			pool.RegisterProcessor(&funcProcessor{jobs: svc, fn: func(ctx context.Context, job *models.Job) error {
				_, hasDeadline = ctx.Deadline()
				return nil
			}})

			processed, err := pool.workers[0].ProcessNext(ctx)
			require.NoError(t, err)
			assert.True(t, processed)
			assert.Equal(t, tt.wantDeadline, hasDeadline)
		})
	}
}

func TestWorkerJobTimeoutCancelsSlowJob(t *testing.T) {
	svc := newJobService(t)
	ctx := context.Background()
	_, err := svc.EnqueueJob(ctx, models.JobTypeTranscribeTestimony, models.JobPayload{models.PayloadTestimonyID: 1})
	require.NoError(t, err)

	w := NewWorker("w", svc, 0, logger.Discard())
	w.SetJobTimeout(10 * time.Millisecond)
	w.RegisterProcessor(&funcProcessor{jobs: svc, fn: func(ctx context.Context, job *models.Job) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}})

	processed, err := w.ProcessNext(ctx)
	assert.True(t, processed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), w.Stats().Failed)
}
