package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/killallgit/testimony-api/pkg/config"
	"github.com/killallgit/testimony-api/pkg/providers"
)

const (
	DefaultEndpoint   = "https://api.openai.com/v1/embeddings"
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536
)

// OpenAIEmbedder calls an OpenAI compatible embeddings endpoint
type OpenAIEmbedder struct {
	apiKey     string
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
	retry      providers.RetryPolicy
}

// NewOpenAIEmbedder creates an embedder from the embeddings settings
func NewOpenAIEmbedder(cfg config.EmbeddingsConfig) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.APIURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		retry:      providers.DefaultRetryPolicy(),
	}
	if e.endpoint == "" {
		e.endpoint = DefaultEndpoint
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.dimensions <= 0 {
		e.dimensions = DefaultDimensions
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	e.client = providers.NewHTTPClient(timeout)
	return e
}

// WithRetryPolicy overrides the backoff used for 429 and 5xx responses
func (e *OpenAIEmbedder) WithRetryPolicy(p providers.RetryPolicy) *OpenAIEmbedder {
	e.retry = p
	return e
}

func (e *OpenAIEmbedder) Model() string   { return e.model }
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(e.apiKey) == "" {
		return nil, providers.ErrMissingAPIKey
	}

	var resp embeddingResponse
	err := providers.DoWithRetry(ctx, e.client, e.retry, "openai", e.endpoint, e.apiKey, embeddingRequest{
		Model:      e.model,
		Input:      texts,
		Dimensions: e.dimensions,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(d.Embedding), e.dimensions)
		}
		out[i] = d.Embedding
	}
	return out, nil
}
