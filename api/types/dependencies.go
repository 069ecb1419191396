package types

import (
	"context"

	"github.com/killallgit/testimony-api/internal/database"
	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/indexer"
	"github.com/killallgit/testimony-api/internal/services/ingestion"
	"github.com/killallgit/testimony-api/internal/services/jobs"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	"github.com/killallgit/testimony-api/internal/services/workers"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// Ingester accepts uploads for the testimonies routes
type Ingester interface {
	Ingest(ctx context.Context, req ingestion.Request) (*ingestion.Result, error)
	MaxUploadBytes() int64
}

// Searcher runs semantic search over indexed testimonies
type Searcher interface {
	Search(ctx context.Context, query string, opts indexer.SearchOptions) ([]indexer.SearchResult, error)
}

// PromptLister lists registered summary prompts
type PromptLister interface {
	List(ctx context.Context) ([]models.SummaryPrompt, error)
}

// PoolStatser reports worker pool counters
type PoolStatser interface {
	Stats() workers.PoolStats
}

// Dependencies holds all the dependencies needed by handlers
type Dependencies struct {
	DB          *database.DB
	Ingestion   Ingester
	Testimonies testimonies.Repository
	JobService  jobs.Service
	WorkerPool  PoolStatser
	Search      Searcher
	Prompts     PromptLister
	Logger      *logger.Logger
	Version     string
}
