package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/ingestion"
	"github.com/killallgit/testimony-api/pkg/logger"
)

type fakeIngester struct {
	mu       sync.Mutex
	requests []ingestion.Request
	err      error
	dup      bool
}

func (f *fakeIngester) Ingest(_ context.Context, req ingestion.Request) (*ingestion.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	tm := &models.Testimony{}
	tm.ID = uint(len(f.requests))
	return &ingestion.Result{Testimony: tm, Duplicate: f.dup}, nil
}

func (f *fakeIngester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newWatcher(t *testing.T, ing Ingester) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := New(Options{InboxDir: dir, Origin: "inbox", SettleDelay: 20 * time.Millisecond}, ing, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { w.fsw.Close() })
	return w, dir
}

func TestNew_RequiresInbox(t *testing.T) {
	_, err := New(Options{}, &fakeIngester{}, logger.Discard())
	assert.Error(t, err)
}

func TestNew_CreatesOutcomeDirs(t *testing.T) {
	_, dir := newWatcher(t, &fakeIngester{})
	assert.DirExists(t, filepath.Join(dir, ProcessedDir))
	assert.DirExists(t, filepath.Join(dir, FailedDir))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("/in/culto.MP3"))
	assert.True(t, Supported("testimonio.m4a"))
	assert.False(t, Supported("notes.txt"))
	assert.False(t, Supported(".hidden.mp3"))
	assert.False(t, Supported("sin_extension"))
}

func TestDatePrefix(t *testing.T) {
	assert.Equal(t, "2025-06-01", datePrefix("2025-06-01_culto.mp3"))
	assert.Equal(t, "", datePrefix("culto.mp3"))
	assert.Equal(t, "", datePrefix("2025-13-45_x.mp3"))
}

func TestHandleFile_MovesToProcessed(t *testing.T) {
	ing := &fakeIngester{}
	w, dir := newWatcher(t, ing)

	path := filepath.Join(dir, "2025-06-01_maria.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3 audio"), 0o644))

	require.NoError(t, w.HandleFile(context.Background(), path))

	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "2025-06-01_maria.mp3"))
	require.Len(t, ing.requests, 1)
	req := ing.requests[0]
	assert.Equal(t, "inbox", req.Origin)
	assert.Equal(t, "watcher", req.CreatedBy)
	assert.Equal(t, "2025-06-01", req.RecordedAt)
	assert.Equal(t, []byte("ID3 audio"), req.Audio)
}

func TestHandleFile_DuplicateIsProcessed(t *testing.T) {
	ing := &fakeIngester{dup: true}
	w, dir := newWatcher(t, ing)

	path := filepath.Join(dir, "repetido.mp3")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0o644))

	require.NoError(t, w.HandleFile(context.Background(), path))
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "repetido.mp3"))
}

func TestHandleFile_FailureMovesToFailed(t *testing.T) {
	ing := &fakeIngester{err: errors.New("unsupported audio")}
	w, dir := newWatcher(t, ing)

	path := filepath.Join(dir, "roto.mp3")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	err := w.HandleFile(context.Background(), path)
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dir, FailedDir, "roto.mp3"))
	assert.NoFileExists(t, path)
}

func TestHandleFile_VanishedFileIsIgnored(t *testing.T) {
	ing := &fakeIngester{}
	w, dir := newWatcher(t, ing)

	assert.NoError(t, w.HandleFile(context.Background(), filepath.Join(dir, "gone.mp3")))
	assert.Zero(t, ing.count())
}

func TestMove_KeepsExistingTarget(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a.mp3"), []byte("first"), 0o644))

	src := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(src, []byte("second"), 0o644))
	require.NoError(t, move(src, dest))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_IngestsExistingAndNewFiles(t *testing.T) {
	ing := &fakeIngester{}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existente.mp3"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leeme.txt"), []byte("skip"), 0o644))

	w, err := New(Options{InboxDir: dir, SettleDelay: 20 * time.Millisecond}, ing, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return ing.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "nuevo.wav"), []byte("new"), 0o644))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, ProcessedDir, "nuevo.wav"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	assert.FileExists(t, filepath.Join(dir, "leeme.txt"))
	assert.Equal(t, 2, ing.count())
}
