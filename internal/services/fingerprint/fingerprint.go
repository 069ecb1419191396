// Package fingerprint derives a content hash for uploaded audio so that the
// same recording re-encoded or re-uploaded resolves to one testimony.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/services/storage"
	"github.com/killallgit/testimony-api/pkg/ffmpeg"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// ErrUndecodableAudio means the bytes are not audio we can read
var ErrUndecodableAudio = errors.New("undecodable audio")

// Method records how a hash was produced
type Method string

const (
	MethodPCM  Method = "pcm"  // decoded PCM of the leading window
	MethodFile Method = "file" // raw bytes of the whole upload
)

const DefaultWindow = 30 * time.Second

// Result is the outcome of fingerprinting one upload
type Result struct {
	DurationMS  int64
	Hash        string
	Method      Method
	ContentType string
}

// AudioTool is the subset of ffmpeg the fingerprinter needs
type AudioTool interface {
	Available() bool
	GetMetadata(ctx context.Context, filePath string) (*ffmpeg.AudioMetadata, error)
	DecodePCM(ctx context.Context, inputFile string, opts ffmpeg.DecodeOptions) ([]byte, error)
}

// Fingerprinter hashes audio uploads
type Fingerprinter struct {
	tool    AudioTool
	tempDir string
	window  time.Duration
	log     *logger.Logger
}

// New creates a Fingerprinter. A nil tool, or one whose binaries are
// missing, degrades to whole-file hashing with unknown duration.
func New(tool AudioTool, tempDir string, window time.Duration, log *logger.Logger) *Fingerprinter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Fingerprinter{
		tool:    tool,
		tempDir: tempDir,
		window:  window,
		log:     logger.OrDefault(log).WithComponent("fingerprint"),
	}
}

// Fingerprint hashes the first window of decoded PCM. The same recording
// in two containers hashes the same; anything ffprobe can't read is
// rejected with ErrUndecodableAudio.
func (f *Fingerprinter) Fingerprint(ctx context.Context, data []byte, filename string) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUndecodableAudio)
	}

	mtype := mimetype.Detect(data)
	if !isAudioContainer(mtype) {
		return nil, fmt.Errorf("%w: content type %s", ErrUndecodableAudio, mtype.String())
	}

	res := &Result{ContentType: mtype.String()}

	if f.tool == nil || !f.tool.Available() {
		f.log.Warn("ffmpeg unavailable, falling back to whole-file hash")
		res.Hash = hashBytes(data)
		res.Method = MethodFile
		return res, nil
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = mtype.Extension()
	}
	path, cleanup, err := storage.WriteTemp(f.tempDir, ext, data)
	if err != nil {
		return nil, fmt.Errorf("staging audio: %w", err)
	}
	defer cleanup()

	meta, err := f.tool.GetMetadata(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableAudio, err)
	}
	res.DurationMS = meta.DurationMS()

	pcm, err := f.tool.DecodePCM(ctx, path, ffmpeg.DecodeOptions{Window: f.window})
	if err != nil || len(pcm) == 0 {
		f.log.WithFields(logrus.Fields{
			"file":  filename,
			"error": err,
		}).Warn("pcm decode failed, hashing file bytes")
		res.Hash = hashBytes(data)
		res.Method = MethodFile
		return res, nil
	}

	res.Hash = hashBytes(pcm)
	res.Method = MethodPCM
	return res, nil
}

func isAudioContainer(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/") {
			return true
		}
		if m.Is("application/ogg") {
			return true
		}
	}
	// Raw streams (AAC/ADTS, AMR without magic) sniff as octet-stream;
	// ffprobe decides those.
	return mtype.Is("application/octet-stream")
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
