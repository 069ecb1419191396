package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/killallgit/testimony-api/pkg/config"
	"github.com/killallgit/testimony-api/pkg/providers"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	DefaultModel    = "whisper-1"
	DefaultLanguage = "es"
	DefaultTimeout  = 10 * time.Minute
)

// OpenAITranscriber posts audio to an OpenAI compatible transcription
// endpoint and asks for plain text back.
type OpenAITranscriber struct {
	apiKey   string
	endpoint string
	model    string
	language string
	timeout  time.Duration
	client   *http.Client
}

// NewOpenAITranscriber builds a transcriber from config, filling defaults
func NewOpenAITranscriber(cfg config.TranscriptionConfig) *OpenAITranscriber {
	t := &OpenAITranscriber{
		apiKey:   cfg.APIKey,
		endpoint: cfg.APIURL,
		model:    cfg.Model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
	}
	if t.endpoint == "" {
		t.endpoint = DefaultEndpoint
	}
	if t.model == "" {
		t.model = DefaultModel
	}
	if t.language == "" {
		t.language = DefaultLanguage
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	t.client = providers.NewHTTPClient(t.timeout)
	return t
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, in AudioInput) (*Result, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, providers.ErrMissingAPIKey
	}

	file, err := os.Open(in.Path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	language := in.Language
	if language == "" {
		language = t.language
	}
	filename := in.FileName
	if filename == "" {
		filename = filepath.Base(in.Path)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	fields := map[string]string{
		"model":           t.model,
		"language":        language,
		"response_format": "text",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write %s field: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, providers.DecodeError("openai", resp)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transcription response: %w", err)
	}

	return &Result{
		Text:     strings.TrimSpace(string(text)),
		Language: language,
		Model:    t.model,
	}, nil
}
