// Package ingestion accepts testimony uploads: it validates them, resolves
// duplicates, stores the audio and queues transcription.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/fingerprint"
	"github.com/killallgit/testimony-api/internal/services/jobs"
	"github.com/killallgit/testimony-api/internal/services/storage"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	"github.com/killallgit/testimony-api/pkg/clock"
	"github.com/killallgit/testimony-api/pkg/config"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// Fingerprinter hashes uploaded audio
type Fingerprinter interface {
	Fingerprint(ctx context.Context, data []byte, filename string) (*fingerprint.Result, error)
}

// Request is one upload. Origin, Tags and RecordedAt are raw form values.
type Request struct {
	Audio       []byte
	FileName    string
	ContentType string
	Origin      string
	Tags        string
	RecordedAt  string
	CreatedBy   string
}

// Result is the stored (or reused) record plus the job handling it
type Result struct {
	Testimony *models.Testimony
	JobID     *uint
	Duplicate bool
}

// Gateway is the single entry point for new testimonies
type Gateway struct {
	cfg          config.IngestionConfig
	repo         testimonies.Repository
	jobs         jobs.Service
	store        storage.Store
	fingerprints Fingerprinter
	clock        clock.Clock
	log          *logger.Logger
}

// NewGateway wires a gateway from its collaborators
func NewGateway(cfg config.IngestionConfig, repo testimonies.Repository, jobSvc jobs.Service, store storage.Store, fp Fingerprinter, clk clock.Clock, log *logger.Logger) *Gateway {
	return &Gateway{
		cfg:          cfg,
		repo:         repo,
		jobs:         jobSvc,
		store:        store,
		fingerprints: fp,
		clock:        clock.OrReal(clk),
		log:          logger.OrDefault(log).WithComponent("ingestion"),
	}
}

// MaxUploadBytes is the configured payload limit
func (g *Gateway) MaxUploadBytes() int64 {
	return g.cfg.MaxUploadBytes
}

// Ingest validates and stores an upload. Validation failures are returned
// as *errors.AppError before anything is written.
func (g *Gateway) Ingest(ctx context.Context, req Request) (*Result, error) {
	size := int64(len(req.Audio))
	if g.cfg.MaxUploadBytes > 0 && size > g.cfg.MaxUploadBytes {
		return nil, apperrors.PayloadTooLarge(size, g.cfg.MaxUploadBytes)
	}
	if size == 0 {
		return nil, apperrors.MissingFieldError("file")
	}

	origin, err := ParseOrigin(req.Origin, g.cfg.Origins, g.cfg.DefaultOrigin)
	if err != nil {
		return nil, err
	}

	fp, err := g.fingerprints.Fingerprint(ctx, req.Audio, req.FileName)
	if err != nil {
		if errors.Is(err, fingerprint.ErrUndecodableAudio) {
			return nil, apperrors.UnsupportedMedia(req.FileName, err)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "fingerprinting audio")
	}

	log := g.log.WithFields(logrus.Fields{
		"origin":    origin,
		"hash":      fp.Hash,
		"method":    fp.Method,
		"file_name": req.FileName,
	})

	existing, found, err := g.repo.FindDuplicate(ctx, fp.Hash, origin)
	if err != nil {
		return nil, apperrors.DatabaseError("find duplicate", err)
	}
	if found {
		res := &Result{Testimony: existing, Duplicate: true}
		if existing.TranscriptStatus.InFlight() {
			job, err := g.jobs.FindActiveJobForTestimony(ctx, existing.ID)
			if errors.Is(err, jobs.ErrJobNotFound) {
				// In flight with nothing queued behind it; requeue so it can finish
				log.WithField("testimony_id", existing.ID).Warn("in-flight testimony has no active job, requeueing")
				job, err = g.enqueue(ctx, existing, req.CreatedBy)
			}
			if err != nil {
				return nil, apperrors.DatabaseError("resolve transcription job", err)
			}
			res.JobID = &job.ID
		}
		log.WithField("testimony_id", existing.ID).Info("duplicate upload resolved to existing testimony")
		return res, nil
	}

	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = fp.ContentType
	}
	if contentType == "" {
		contentType = http.DetectContentType(req.Audio)
	}

	key := storage.ObjectKey(g.cfg.StoragePrefix, req.FileName)
	locator, err := g.store.Put(ctx, key, req.Audio, contentType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "storing audio")
	}

	t := &models.Testimony{
		Origin:           origin,
		AudioURL:         locator,
		AudioHash:        fp.Hash,
		AudioDurationMS:  fp.DurationMS,
		UserFileName:     req.FileName,
		TranscriptStatus: models.TranscriptPending,
		Tags:             datatypes.JSONSlice[string](ParseTags(req.Tags)),
		RecordedAt:       datatypes.Date(ParseRecordedAt(req.RecordedAt, g.clock.Now())),
	}
	if err := g.repo.Create(ctx, t); err != nil {
		g.discard(ctx, locator)
		return nil, apperrors.DatabaseError("create testimony", err)
	}

	job, err := g.enqueue(ctx, t, req.CreatedBy)
	if err != nil {
		log.WithError(err).WithField("testimony_id", t.ID).Error("failed to enqueue transcription")
		// A pending record without a job would block re-uploads of the same audio
		if markErr := g.repo.MarkFailed(ctx, t.ID); markErr != nil {
			log.WithError(markErr).WithField("testimony_id", t.ID).Error("failed to mark unqueued testimony failed")
		}
		return nil, apperrors.DatabaseError("enqueue transcription", err)
	}

	log.WithFields(logrus.Fields{
		"testimony_id": t.ID,
		"job_id":       job.ID,
		"duration_ms":  fp.DurationMS,
	}).Info("testimony accepted")

	return &Result{Testimony: t, JobID: &job.ID}, nil
}

func (g *Gateway) enqueue(ctx context.Context, t *models.Testimony, createdBy string) (*models.Job, error) {
	return g.jobs.EnqueueJob(ctx, models.JobTypeTranscribeTestimony, models.JobPayload{
		models.PayloadTestimonyID: t.ID,
		models.PayloadAudioURL:    t.AudioURL,
	}, jobs.WithCreatedBy(createdBy))
}

func (g *Gateway) discard(ctx context.Context, locator string) {
	if err := g.store.Delete(ctx, locator); err != nil {
		g.log.WithError(err).WithField("locator", locator).Warn("failed to remove orphaned audio")
	}
}

// String is used in log lines
func (r *Result) String() string {
	if r == nil || r.Testimony == nil {
		return "<nil>"
	}
	return fmt.Sprintf("testimony %d (duplicate=%t)", r.Testimony.ID, r.Duplicate)
}
