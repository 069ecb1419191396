package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiModel completes chats with Google's Gemini API
type GeminiModel struct {
	client *genai.Client
}

// NewGeminiModel creates a Gemini backed chat model
func NewGeminiModel(ctx context.Context, apiKey string) (*GeminiModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{client: client}, nil
}

func (g *GeminiModel) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", errors.New("no user content to send")
	}

	temp := float32(params.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(params.MaxTokens),
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	result, err := g.client.Models.GenerateContent(ctx, params.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var text strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		return strings.TrimSpace(text.String()), nil
	}

	return "", errors.New("empty response from gemini")
}
