package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	f := New("ffmpeg", "ffprobe", 30*time.Second)
	assert.Equal(t, "ffmpeg", f.ffmpegPath)
	assert.Equal(t, "ffprobe", f.ffprobePath)
	assert.Equal(t, 30*time.Second, f.timeout)
}

func TestValidateBinariesMissing(t *testing.T) {
	f := New("/nonexistent/ffmpeg", "/nonexistent/ffprobe", time.Second)
	err := f.ValidateBinaries()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFFmpegNotFound))
	assert.False(t, f.Available())
}

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantErr  bool
		duration float64
		codec    string
	}{
		{
			name: "format duration",
			raw: `{"format":{"duration":"42.250","size":"1000","bit_rate":"128000","format_name":"mp3"},
				"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"44100","channels":2}]}`,
			duration: 42.25,
			codec:    "mp3",
		},
		{
			name: "stream duration fallback",
			raw: `{"format":{"format_name":"ogg"},
				"streams":[{"codec_type":"audio","codec_name":"opus","sample_rate":"48000","channels":1,"duration":"3.5"}]}`,
			duration: 3.5,
			codec:    "opus",
		},
		{
			name:    "no audio stream",
			raw:     `{"format":{"duration":"10","format_name":"png_pipe"},"streams":[{"codec_type":"video"}]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `garbage`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := parseMetadata([]byte(tt.raw), "clip")
			if tt.wantErr {
				require.Error(t, err)
				var perr *ProcessingError
				assert.True(t, errors.As(err, &perr))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.duration, md.Duration, 0.0001)
			assert.Equal(t, tt.codec, md.Codec)
		})
	}
}

func TestDurationMS(t *testing.T) {
	md := &AudioMetadata{Duration: 12.3456}
	assert.Equal(t, int64(12346), md.DurationMS())
}

func TestDecodeOptionsDefaults(t *testing.T) {
	opts := DecodeOptions{}.withDefaults()
	assert.Equal(t, 16000, opts.SampleRate)
	assert.Equal(t, 1, opts.Channels)
}

func TestProcessingErrorFormat(t *testing.T) {
	err := NewProcessingError("pcm_decode", "a.mp3", ErrNoAudioStream, "moov atom not found")
	assert.Contains(t, err.Error(), "pcm_decode")
	assert.Contains(t, err.Error(), "moov atom not found")
	assert.True(t, errors.Is(err, ErrNoAudioStream))
}

// Integration test - only runs if ffmpeg/ffprobe are available
func TestDecodePCMWithGeneratedTone(t *testing.T) {
	f := New("ffmpeg", "ffprobe", 30*time.Second)
	if err := f.ValidateBinaries(); err != nil {
		t.Skipf("FFmpeg binaries not available: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "sine=frequency=440:duration=2", path)
	require.NoError(t, gen.Run())

	ctx := context.Background()
	md, err := f.GetMetadata(ctx, path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, md.Duration, 0.1)

	pcm, err := f.DecodePCM(ctx, path, DecodeOptions{Window: time.Second})
	require.NoError(t, err)
	// 1s of mono 16 kHz s16le
	assert.InDelta(t, 32000, len(pcm), 400)

	garbage := filepath.Join(t.TempDir(), "garbage.mp3")
	require.NoError(t, os.WriteFile(garbage, []byte("not audio"), 0644))
	_, err = f.GetMetadata(ctx, garbage)
	assert.Error(t, err)
}
