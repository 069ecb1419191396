package summary

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/killallgit/testimony-api/pkg/providers"
)

const DefaultChatEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIChatModel talks to an OpenAI compatible chat completions endpoint
type OpenAIChatModel struct {
	apiKey   string
	endpoint string
	client   *http.Client
	retry    providers.RetryPolicy
}

// NewOpenAIChatModel creates a chat model; endpoint defaults to OpenAI's
func NewOpenAIChatModel(apiKey, endpoint string, timeout time.Duration) *OpenAIChatModel {
	if endpoint == "" {
		endpoint = DefaultChatEndpoint
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIChatModel{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   providers.NewHTTPClient(timeout),
		retry:    providers.DefaultRetryPolicy(),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (m *OpenAIChatModel) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	if strings.TrimSpace(m.apiKey) == "" {
		return "", providers.ErrMissingAPIKey
	}

	var resp chatResponse
	err := providers.DoWithRetry(ctx, m.client, m.retry, "openai", m.endpoint, m.apiKey, chatRequest{
		Model:       params.Model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
