package summary

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/killallgit/testimony-api/internal/services/prompts"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// Summary is a generated summary and the prompt that produced it.
// PromptID is nil when the prompt could not be registered.
type Summary struct {
	Text     string
	PromptID *uint
}

// PromptRegistry resolves a prompt configuration to its stored id
type PromptRegistry interface {
	GetOrCreate(ctx context.Context, spec prompts.Spec) (uint, error)
}

// Engine produces testimony summaries. It never returns an error: any
// failure yields an empty summary and a log line.
type Engine struct {
	model    ChatModel
	prompt   PromptConfig
	registry PromptRegistry
	log      *logger.Logger

	mu       sync.Mutex
	promptID *uint
}

// NewEngine creates a summary engine. model and registry may be nil.
func NewEngine(model ChatModel, prompt PromptConfig, registry PromptRegistry, log *logger.Logger) *Engine {
	if strings.TrimSpace(prompt.Template) == "" {
		prompt = DefaultPrompt()
	}
	return &Engine{
		model:    model,
		prompt:   prompt,
		registry: registry,
		log:      logger.OrDefault(log).WithComponent("summary"),
	}
}

// Prompt returns the active prompt configuration
func (e *Engine) Prompt() PromptConfig {
	return e.prompt
}

// GenerateSummary returns "" for an empty transcript, a missing model or
// any provider error.
func (e *Engine) GenerateSummary(ctx context.Context, transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return ""
	}
	if e.model == nil {
		e.log.Warn("No chat model configured, skipping summary")
		return ""
	}

	text, err := e.model.Complete(ctx, e.prompt.Messages(transcript), e.prompt.Params())
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"model":          e.prompt.Model,
			"prompt_version": e.prompt.Version,
		}).Warn("Summary generation failed")
		return ""
	}
	return StripLegacySections(text)
}

// Summarize generates a summary and records which prompt produced it
func (e *Engine) Summarize(ctx context.Context, transcript string) Summary {
	text := e.GenerateSummary(ctx, transcript)
	if text == "" {
		return Summary{}
	}
	return Summary{Text: text, PromptID: e.PromptID(ctx)}
}

// PromptID registers the active prompt once and caches its id
func (e *Engine) PromptID(ctx context.Context) *uint {
	if e.registry == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.promptID != nil {
		return e.promptID
	}

	id, err := e.registry.GetOrCreate(ctx, e.prompt.Spec())
	if err != nil {
		e.log.WithError(err).Warn("Failed to register summary prompt")
		return nil
	}
	e.promptID = &id
	return e.promptID
}
