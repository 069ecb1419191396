package fingerprint

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/testimony-api/pkg/ffmpeg"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// wavBytes builds a minimal PCM WAV file with n silent samples
func wavBytes(n int, fill byte) []byte {
	var buf bytes.Buffer
	dataLen := uint32(n * 2)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(32000))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(bytes.Repeat([]byte{fill}, int(dataLen)))
	return buf.Bytes()
}

type fakeTool struct {
	available bool
	duration  float64
	pcm       []byte
	probeErr  error
	decodeErr error

	stagedPath string
	window     time.Duration
}

func (f *fakeTool) Available() bool { return f.available }

func (f *fakeTool) GetMetadata(ctx context.Context, path string) (*ffmpeg.AudioMetadata, error) {
	f.stagedPath = path
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return &ffmpeg.AudioMetadata{Duration: f.duration}, nil
}

func (f *fakeTool) DecodePCM(ctx context.Context, path string, opts ffmpeg.DecodeOptions) ([]byte, error) {
	f.window = opts.Window
	return f.pcm, f.decodeErr
}

func TestFingerprintPCM(t *testing.T) {
	tool := &fakeTool{available: true, duration: 42.5, pcm: []byte{1, 2, 3, 4}}
	fp := New(tool, t.TempDir(), 0, logger.Discard())

	res, err := fp.Fingerprint(context.Background(), wavBytes(1600, 0), "voz.wav")
	require.NoError(t, err)
	assert.Equal(t, MethodPCM, res.Method)
	assert.Equal(t, int64(42500), res.DurationMS)
	assert.Equal(t, hashBytes([]byte{1, 2, 3, 4}), res.Hash)
	assert.Len(t, res.Hash, 64)
	assert.Equal(t, DefaultWindow, tool.window)

	// Staged file is removed afterwards
	_, err = os.Stat(tool.stagedPath)
	assert.True(t, os.IsNotExist(err))
}

func TestFingerprintIsDeterministic(t *testing.T) {
	tool := &fakeTool{available: true, duration: 1, pcm: []byte("same pcm")}
	fp := New(tool, t.TempDir(), 0, logger.Discard())
	ctx := context.Background()

	// Two different containers with the same decoded audio
	a, err := fp.Fingerprint(ctx, wavBytes(100, 0), "a.wav")
	require.NoError(t, err)
	b, err := fp.Fingerprint(ctx, wavBytes(200, 0), "b.wav")
	require.NoError(t, err)
	assert.Equal(t, a.Hash, b.Hash)
}

func TestFingerprintFallsBackToFileHash(t *testing.T) {
	data := wavBytes(100, 7)

	tests := []struct {
		name string
		tool AudioTool
	}{
		{"decode error", &fakeTool{available: true, duration: 3, decodeErr: errors.New("boom")}},
		{"empty pcm", &fakeTool{available: true, duration: 3}},
		{"no ffmpeg", &fakeTool{available: false}},
		{"nil tool", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := New(tt.tool, t.TempDir(), time.Second, logger.Discard())
			res, err := fp.Fingerprint(context.Background(), data, "x.wav")
			require.NoError(t, err)
			assert.Equal(t, MethodFile, res.Method)
			assert.Equal(t, hashBytes(data), res.Hash)
		})
	}
}

func TestFingerprintRejectsUndecodable(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		tool *fakeTool
	}{
		{"empty", nil, &fakeTool{available: true}},
		{"text", []byte("hello, this is not audio at all\n"), &fakeTool{available: true}},
		{"png", append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...), &fakeTool{available: true}},
		{"probe fails", wavBytes(10, 0), &fakeTool{available: true, probeErr: ffmpeg.ErrInvalidAudioFile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := New(tt.tool, t.TempDir(), 0, logger.Discard())
			_, err := fp.Fingerprint(context.Background(), tt.data, "x.wav")
			assert.ErrorIs(t, err, ErrUndecodableAudio)
		})
	}
}
