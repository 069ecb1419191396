package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/pkg/clock"
	"github.com/killallgit/testimony-api/pkg/logger"
)

type stubJobs struct {
	stale    []*models.Job
	deleted  int64
	lastDays int
}

func (s *stubJobs) FindStaleJobs(ctx context.Context, olderThan time.Duration) ([]*models.Job, error) {
	return s.stale, nil
}

func (s *stubJobs) CleanupOldJobs(ctx context.Context, days int) (int64, error) {
	s.lastDays = days
	return s.deleted, nil
}

func writeFile(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestSweepRemovesOldStagedFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	clk := clock.NewManaged(now)

	old := writeFile(t, dir, "staged_old.mp3", now.Add(-7*time.Hour))
	fresh := writeFile(t, dir, "staged_new.mp3", now.Add(-time.Minute))
	other := writeFile(t, dir, "notes.txt", now.Add(-48*time.Hour))

	svc := NewService(Options{TempDir: dir, MaxAge: 6 * time.Hour}, nil, clk, logger.Discard())
	report := svc.Sweep(context.Background())

	assert.Equal(t, 1, report.FilesRemoved)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	clk.WarpForward(7 * time.Hour)
	report = svc.Sweep(context.Background())
	assert.Equal(t, 1, report.FilesRemoved)
	assert.NoFileExists(t, fresh)
}

func TestSweepReportsStaleJobsAndPrunes(t *testing.T) {
	jobs := &stubJobs{
		stale:   []*models.Job{{WorkerID: "worker-1"}},
		deleted: 4,
	}
	jobs.stale[0].ID = 12

	svc := NewService(Options{StaleJobAfter: time.Hour, RetentionDays: 30}, jobs, nil, logger.Discard())
	report := svc.Sweep(context.Background())

	assert.Equal(t, []uint{12}, report.StaleJobs)
	assert.Equal(t, int64(4), report.JobsDeleted)
	assert.Equal(t, 30, jobs.lastDays)
}

func TestStartStop(t *testing.T) {
	svc := NewService(Options{TempDir: filepath.Join(t.TempDir(), "missing"), Interval: time.Millisecond}, nil, nil, logger.Discard())
	svc.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	svc.Stop()
}
