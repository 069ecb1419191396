package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// FFmpeg wraps ffmpeg and ffprobe functionality
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

// New creates a new FFmpeg instance
func New(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
	}
}

// ValidateBinaries checks if ffmpeg and ffprobe are available
func (f *FFmpeg) ValidateBinaries() error {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, f.ffmpegPath)
	}

	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFprobeNotFound, f.ffprobePath)
	}

	return nil
}

// Available reports whether both binaries can be executed.
func (f *FFmpeg) Available() bool {
	return f.ValidateBinaries() == nil
}

// DecodePCM decodes the start of inputFile into raw PCM bytes. Only the
// first opts.Window of audio is decoded; a zero window decodes the whole clip.
// Output is a fixed format so the bytes are comparable across uploads of the
// same recording in different containers.
func (f *FFmpeg) DecodePCM(ctx context.Context, inputFile string, opts DecodeOptions) ([]byte, error) {
	opts = opts.withDefaults()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := []string{"-v", "error", "-i", inputFile}
	if opts.Window > 0 {
		args = append(args, "-t", strconv.FormatFloat(opts.Window.Seconds(), 'f', 3, 64))
	}
	args = append(args,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(opts.Channels),
		"-ar", strconv.Itoa(opts.SampleRate),
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewProcessingError("pcm_decode", inputFile, ErrProcessingTimeout, stderr.String())
		}
		return nil, NewProcessingError("pcm_decode", inputFile, err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, NewProcessingError("pcm_decode", inputFile, ErrNoAudioStream, stderr.String())
	}

	return stdout.Bytes(), nil
}
