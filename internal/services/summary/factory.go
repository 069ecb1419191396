package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/killallgit/testimony-api/pkg/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultGeminiModel = "gemini-2.0-flash"
)

// PromptFromConfig loads the prompt file when set and applies the model
// overrides from cfg.
func PromptFromConfig(cfg config.SummaryConfig) (PromptConfig, error) {
	p := DefaultPrompt()
	if cfg.PromptFile != "" {
		loaded, err := LoadPromptFile(cfg.PromptFile)
		if err != nil {
			return PromptConfig{}, err
		}
		p = loaded
	}

	switch {
	case cfg.Model != "":
		p.Model = cfg.Model
	case strings.EqualFold(cfg.Provider, ProviderGemini) && strings.HasPrefix(p.Model, "gpt-"):
		p.Model = DefaultGeminiModel
	}
	if cfg.Temperature > 0 {
		p.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		p.MaxTokens = cfg.MaxTokens
	}
	return p, nil
}

// NewChatModelFromConfig builds the configured chat backend
func NewChatModelFromConfig(ctx context.Context, cfg config.SummaryConfig) (ChatModel, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAIChatModel(cfg.APIKey, cfg.APIURL, cfg.Timeout), nil
	case ProviderGemini:
		return NewGeminiModel(ctx, cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Provider)
	}
}
