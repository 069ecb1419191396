// Package watcher ingests audio files dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/services/ingestion"
	"github.com/killallgit/testimony-api/pkg/config"
	"github.com/killallgit/testimony-api/pkg/logger"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

var supportedExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".ogg": true, ".oga": true,
	".opus": true, ".flac": true, ".aac": true, ".webm": true, ".mp4": true,
}

// Ingester is the gateway entry point used for each file
type Ingester interface {
	Ingest(ctx context.Context, req ingestion.Request) (*ingestion.Result, error)
}

// Options configures the watcher
type Options struct {
	InboxDir    string
	Origin      string
	Concurrency int
	SettleDelay time.Duration // how long the size must stay unchanged
}

// OptionsFromConfig maps the watcher config section
func OptionsFromConfig(cfg config.WatcherConfig) Options {
	return Options{
		InboxDir:    cfg.InboxDir,
		Origin:      cfg.DefaultOrigin,
		Concurrency: cfg.Concurrency,
		SettleDelay: cfg.SettleDelay,
	}
}

// Watcher ingests new audio files from the inbox and moves each one to
// processed/ or failed/ afterwards.
type Watcher struct {
	opts     Options
	ingester Ingester
	log      *logger.Logger

	fsw       *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]bool
}

// New watches opts.InboxDir, creating it and its outcome folders if needed
func New(opts Options, ingester Ingester, log *logger.Logger) (*Watcher, error) {
	if opts.InboxDir == "" {
		return nil, errors.New("inbox directory is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = time.Second
	}

	for _, dir := range []string{opts.InboxDir, filepath.Join(opts.InboxDir, ProcessedDir), filepath.Join(opts.InboxDir, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(opts.InboxDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	return &Watcher{
		opts:      opts,
		ingester:  ingester,
		log:       logger.OrDefault(log).With(logrus.Fields{"component": "watcher", "inbox": opts.InboxDir}),
		fsw:       fsw,
		semaphore: make(chan struct{}, opts.Concurrency),
		inFlight:  make(map[string]bool),
	}, nil
}

// Run ingests files already in the inbox, then handles new ones until ctx
// is done. It waits for in-flight files before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.log.WithField("concurrency", w.opts.Concurrency).Info("Inbox watcher started")

	entries, err := os.ReadDir(w.opts.InboxDir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.dispatch(ctx, filepath.Join(w.opts.InboxDir, e.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.log.Info("Inbox watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				w.wg.Wait()
				return errors.New("watcher events channel closed")
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.dispatch(ctx, event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.wg.Wait()
				return errors.New("watcher errors channel closed")
			}
			w.log.WithError(err).Error("Watcher error")
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	if !Supported(path) {
		return
	}

	w.mu.Lock()
	if w.inFlight[path] {
		w.mu.Unlock()
		return
	}
	w.inFlight[path] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.inFlight, path)
			w.mu.Unlock()
		}()

		select {
		case w.semaphore <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-w.semaphore }()

		if err := w.HandleFile(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
			w.log.WithError(err).WithField("file", filepath.Base(path)).Error("Failed to ingest file")
		}
	}()
}

// HandleFile waits for path to finish writing, ingests it and moves it to
// processed/ (new or duplicate) or failed/.
func (w *Watcher) HandleFile(ctx context.Context, path string) error {
	if err := w.waitUntilStable(ctx, path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	res, ingestErr := w.ingester.Ingest(ctx, ingestion.Request{
		Audio:      data,
		FileName:   name,
		Origin:     w.opts.Origin,
		RecordedAt: datePrefix(name),
		CreatedBy:  "watcher",
	})
	if ingestErr != nil {
		if errors.Is(ingestErr, context.Canceled) {
			return ingestErr
		}
		if err := move(path, filepath.Join(w.opts.InboxDir, FailedDir)); err != nil {
			w.log.WithError(err).WithField("file", name).Error("Failed to move file to failed/")
		}
		return fmt.Errorf("ingest %s: %w", name, ingestErr)
	}

	if err := move(path, filepath.Join(w.opts.InboxDir, ProcessedDir)); err != nil {
		return err
	}

	w.log.WithFields(logrus.Fields{
		"file":         name,
		"testimony_id": res.Testimony.ID,
		"duplicate":    res.Duplicate,
	}).Info("Ingested inbox file")
	return nil
}

// waitUntilStable polls the file size until it holds for SettleDelay
func (w *Watcher) waitUntilStable(ctx context.Context, path string) error {
	poll := max(w.opts.SettleDelay/4, 10*time.Millisecond)
	lastSize := int64(-1)
	var stableSince time.Time

	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		now := time.Now()
		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = now
		} else if info.Size() > 0 && now.Sub(stableSince) >= w.opts.SettleDelay {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

// Supported reports whether path has an audio extension the watcher takes
func Supported(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// datePrefix returns "2025-06-01" for "2025-06-01_culto.mp3", else ""
func datePrefix(name string) string {
	if len(name) >= 10 {
		if _, err := time.Parse(time.DateOnly, name[:10]); err == nil {
			return name[:10]
		}
	}
	return ""
}

// move renames path into dir, adding a timestamp when the name is taken
func move(path, dir string) error {
	target := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(target)
		target = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(target, ext), time.Now().UnixNano(), ext)
	}
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(path), err)
	}
	return nil
}
