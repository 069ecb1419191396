package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/jobs"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// JobProcessor handles one job type. ProcessJob settles the job itself
// (complete, retry or fail); a returned error means the job did not
// succeed on this attempt.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job *models.Job) error
	CanProcess(jobType models.JobType) bool
}

// RetryScheduledError is returned by processors when the job was put back
// on the queue for another attempt.
type RetryScheduledError struct {
	Delay time.Duration
	Err   error
}

func (e *RetryScheduledError) Error() string {
	return fmt.Sprintf("retry scheduled in %s: %v", e.Delay, e.Err)
}

func (e *RetryScheduledError) Unwrap() error {
	return e.Err
}

// knownJobTypes are offered to processors when building the claim filter
var knownJobTypes = []models.JobType{
	models.JobTypeTranscribeTestimony,
}

// WorkerStats is a snapshot of one worker's counters
type WorkerStats struct {
	ID         string     `json:"id"`
	Busy       bool       `json:"busy"`
	CurrentJob *uint      `json:"current_job,omitempty"`
	Processed  int64      `json:"processed"`
	Succeeded  int64      `json:"succeeded"`
	Retried    int64      `json:"retried"`
	Failed     int64      `json:"failed"`
	LastJobAt  *time.Time `json:"last_job_at,omitempty"`
}

// Worker represents a background worker that processes jobs one at a time
type Worker struct {
	id           string
	jobService   jobs.Service
	processors   []JobProcessor
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	pollInterval time.Duration
	jobTimeout   time.Duration
	log          *logger.Logger

	mu    sync.Mutex
	stats WorkerStats
}

// NewWorker creates a new worker instance
func NewWorker(id string, jobService jobs.Service, pollInterval time.Duration, log *logger.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Worker{
		id:           id,
		jobService:   jobService,
		processors:   make([]JobProcessor, 0),
		stopChan:     make(chan struct{}),
		pollInterval: pollInterval,
		log:          logger.OrDefault(log).With(logrus.Fields{"component": "worker", "worker": id}),
		stats:        WorkerStats{ID: id},
	}
}

// RegisterProcessor registers a job processor
func (w *Worker) RegisterProcessor(processor JobProcessor) {
	w.processors = append(w.processors, processor)
}

// SetJobTimeout bounds each ProcessJob call. Zero means no limit.
func (w *Worker) SetJobTimeout(d time.Duration) {
	w.jobTimeout = d
}

// Start starts the worker in a goroutine
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the worker after its current job finishes
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

// Stats returns a copy of the worker's counters
func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	return s
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.log.Info("worker starting")
	defer w.log.Info("worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			// Drain runnable jobs before sleeping again
			for {
				processed, err := w.ProcessNext(ctx)
				if err != nil {
					w.log.WithError(err).Warn("job did not succeed")
				}
				if !processed || w.stopping(ctx) {
					break
				}
			}
		}
	}
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

// ProcessNext claims and processes a single job. processed is false when
// the queue had nothing runnable.
func (w *Worker) ProcessNext(ctx context.Context) (processed bool, err error) {
	supportedTypes := w.supportedTypes()
	if len(supportedTypes) == 0 {
		return false, fmt.Errorf("no job processors registered")
	}

	job, err := w.jobService.ClaimNextJob(ctx, w.id, supportedTypes)
	if err != nil {
		if errors.Is(err, jobs.ErrNoJobsAvailable) {
			return false, nil
		}
		return false, err
	}

	var processor JobProcessor
	for _, p := range w.processors {
		if p.CanProcess(job.Type) {
			processor = p
			break
		}
	}

	w.begin(job.ID)
	log := w.log.WithFields(logrus.Fields{"job_id": job.ID, "type": job.Type, "attempt": job.Attempts})
	log.Info("claimed job")

	if processor == nil {
		err = fmt.Errorf("no processor found for job type %s", job.Type)
		w.failUnsettled(ctx, job, err)
		w.finish(err)
		return true, err
	}

	jobCtx, cancel := w.jobContext(ctx)
	err = w.safeProcess(jobCtx, processor, job)
	cancel()
	w.finish(err)

	if err == nil {
		log.Info("job completed")
	}
	return true, err
}

func (w *Worker) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.jobTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.jobTimeout)
}

// safeProcess turns a processor panic into a failed job instead of a
// dead worker.
func (w *Worker) safeProcess(ctx context.Context, p JobProcessor, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
			w.failUnsettled(ctx, job, err)
		}
	}()
	return p.ProcessJob(ctx, job)
}

func (w *Worker) failUnsettled(ctx context.Context, job *models.Job, cause error) {
	jobErr := models.NewJobError(models.ErrorTypeSystem, "worker_error", cause.Error(), cause)
	if err := w.jobService.FailJob(ctx, job.ID, jobErr); err != nil {
		w.log.WithError(err).WithField("job_id", job.ID).Error("failed to mark job as failed")
	}
}

func (w *Worker) supportedTypes() []models.JobType {
	var out []models.JobType
	for _, jt := range knownJobTypes {
		for _, p := range w.processors {
			if p.CanProcess(jt) {
				out = append(out, jt)
				break
			}
		}
	}
	return out
}

func (w *Worker) begin(jobID uint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Busy = true
	w.stats.CurrentJob = &jobID
}

func (w *Worker) finish(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.stats.Busy = false
	w.stats.CurrentJob = nil
	w.stats.Processed++
	w.stats.LastJobAt = &now

	var retry *RetryScheduledError
	switch {
	case err == nil:
		w.stats.Succeeded++
	case errors.As(err, &retry):
		w.stats.Retried++
	default:
		w.stats.Failed++
	}
}

// PoolStats aggregates worker counters
type PoolStats struct {
	Running   bool          `json:"running"`
	Workers   int           `json:"workers"`
	Busy      int           `json:"busy"`
	Processed int64         `json:"processed"`
	Succeeded int64         `json:"succeeded"`
	Retried   int64         `json:"retried"`
	Failed    int64         `json:"failed"`
	PerWorker []WorkerStats `json:"per_worker"`
}

// WorkerPool manages multiple workers
type WorkerPool struct {
	workers    []*Worker
	jobService jobs.Service
	log        *logger.Logger
	mu         sync.RWMutex
	started    bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(jobService jobs.Service, workerCount int, pollInterval time.Duration, log *logger.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	log = logger.OrDefault(log)

	pool := &WorkerPool{
		jobService: jobService,
		workers:    make([]*Worker, workerCount),
		log:        log.WithComponent("worker_pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerID := fmt.Sprintf("worker-%d", i+1)
		pool.workers[i] = NewWorker(workerID, jobService, pollInterval, log)
	}

	return pool
}

// RegisterProcessor registers a processor with all workers
func (p *WorkerPool) RegisterProcessor(processor JobProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, worker := range p.workers {
		worker.RegisterProcessor(processor)
	}
}

// SetJobTimeout applies a per-job deadline to every worker
func (p *WorkerPool) SetJobTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, worker := range p.workers {
		worker.SetJobTimeout(d)
	}
}

// Start starts all workers
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}

	p.log.WithField("workers", len(p.workers)).Info("starting worker pool")

	for _, worker := range p.workers {
		worker.Start(ctx)
	}

	p.started = true
	return nil
}

// Stop stops all workers, waiting for in-flight jobs
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.log.Info("stopping worker pool")

	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}
	wg.Wait()

	p.started = false
}

// Stats sums the counters of every worker
func (p *WorkerPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := PoolStats{Running: p.started, Workers: len(p.workers)}
	for _, w := range p.workers {
		s := w.Stats()
		out.PerWorker = append(out.PerWorker, s)
		out.Processed += s.Processed
		out.Succeeded += s.Succeeded
		out.Retried += s.Retried
		out.Failed += s.Failed
		if s.Busy {
			out.Busy++
		}
	}
	return out
}
