// Package transcription turns staged audio files into text.
package transcription

import "context"

// AudioInput is a staged audio file plus hints for the provider
type AudioInput struct {
	Path     string
	FileName string
	Language string
}

// Result is the provider output. Text may be empty for silent audio.
type Result struct {
	Text     string
	Language string
	Model    string
}

// Transcriber converts audio to text. Implementations must honor ctx
// deadlines; callers rely on them to classify timeouts as transient.
type Transcriber interface {
	Transcribe(ctx context.Context, in AudioInput) (*Result, error)
}
