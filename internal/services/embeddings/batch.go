package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/killallgit/testimony-api/pkg/config"
	"github.com/killallgit/testimony-api/pkg/logger"
)

const DefaultBatchSize = 64

// BatchEmbedder splits large inputs into provider sized batches and paces
// the requests with a token bucket.
type BatchEmbedder struct {
	inner     Embedder
	batchSize int
	limiter   *rate.Limiter
	log       *logger.Logger
}

// NewBatchEmbedder wraps inner. requestsPerSecond <= 0 disables pacing.
func NewBatchEmbedder(inner Embedder, batchSize int, requestsPerSecond float64, log *logger.Logger) *BatchEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &BatchEmbedder{
		inner:     inner,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		log:       logger.OrDefault(log).WithComponent("embeddings"),
	}
}

// FromConfig builds the OpenAI embedder wrapped in batching
func FromConfig(cfg config.EmbeddingsConfig, log *logger.Logger) *BatchEmbedder {
	return NewBatchEmbedder(NewOpenAIEmbedder(cfg), cfg.BatchSize, cfg.RequestsPerSecond, log)
}

func (b *BatchEmbedder) Model() string   { return b.inner.Model() }
func (b *BatchEmbedder) Dimensions() int { return b.inner.Dimensions() }

func (b *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vecs, err := b.inner.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)

		b.log.WithField("batch_start", start).WithField("batch_size", end-start).Debug("Embedded batch")
	}
	return out, nil
}
