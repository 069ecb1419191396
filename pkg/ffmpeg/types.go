package ffmpeg

import "time"

// AudioMetadata represents metadata extracted from an audio file
type AudioMetadata struct {
	Duration   float64 `json:"duration"`    // Duration in seconds
	SampleRate int     `json:"sample_rate"` // Sample rate in Hz
	Channels   int     `json:"channels"`
	Bitrate    int     `json:"bitrate"` // bits per second
	Format     string  `json:"format"`  // Container format (mp3, mov,mp4,m4a, ...)
	Codec      string  `json:"codec"`
	Size       int64   `json:"size"`
}

// DurationMS returns the duration rounded to milliseconds
func (m *AudioMetadata) DurationMS() int64 {
	return int64(m.Duration*1000 + 0.5)
}

// DecodeOptions controls PCM decoding
type DecodeOptions struct {
	Window     time.Duration // Only decode this much audio from the start (0 = all)
	SampleRate int
	Channels   int
}

func (o DecodeOptions) withDefaults() DecodeOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.Channels <= 0 {
		o.Channels = 1
	}
	return o
}
