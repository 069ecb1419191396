package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
)

// ffprobeOutput represents the JSON structure returned by ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		Bitrate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// GetMetadata extracts metadata from an audio file using ffprobe
func (f *FFmpeg) GetMetadata(ctx context.Context, filePath string) (*AudioMetadata, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet",
		"-show_format",
		"-show_streams",
		"-select_streams", "a:0", // first audio stream
		"-of", "json",
		filePath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, NewProcessingError("metadata_extraction", filePath, err, stderr.String())
	}

	return parseMetadata(stdout.Bytes(), filePath)
}

// parseMetadata converts ffprobe JSON output to AudioMetadata
func parseMetadata(raw []byte, filePath string) (*AudioMetadata, error) {
	var output ffprobeOutput
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, NewProcessingError("metadata_parsing", filePath, err, "")
	}

	metadata := &AudioMetadata{Format: output.Format.FormatName}

	if d, err := strconv.ParseFloat(output.Format.Duration, 64); err == nil {
		metadata.Duration = d
	}
	if size, err := strconv.ParseInt(output.Format.Size, 10, 64); err == nil {
		metadata.Size = size
	}
	if bitrate, err := strconv.Atoi(output.Format.Bitrate); err == nil {
		metadata.Bitrate = bitrate
	}

	hasAudio := false
	for _, stream := range output.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		hasAudio = true
		metadata.Codec = stream.CodecName
		metadata.Channels = stream.Channels
		if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
			metadata.SampleRate = sr
		}
		// Use stream duration if format duration is not available
		if metadata.Duration == 0 {
			if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				metadata.Duration = d
			}
		}
		break
	}

	if !hasAudio || metadata.Duration <= 0 {
		return nil, NewProcessingError("metadata_validation", filePath, ErrInvalidAudioFile, "")
	}

	return metadata, nil
}
