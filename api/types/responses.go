package types

import (
	"time"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/indexer"
	"github.com/killallgit/testimony-api/internal/services/workers"
)

// Status constants for API responses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// BaseResponse contains fields common to all API responses
type BaseResponse struct {
	Status  string `json:"status"`            // One of the Status constants above
	Message string `json:"message,omitempty"` // Human-readable message
}

// ErrorResponse for detailed error information
type ErrorResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`   // Error code
	Details interface{} `json:"details,omitempty"` // Additional error details
}

// UploadResponse is returned by POST /api/v1/testimonies. Duplicate uploads
// return the existing record with duplicate=true.
type UploadResponse struct {
	BaseResponse
	Testimony *models.Testimony `json:"testimony"`
	JobID     *uint             `json:"job_id,omitempty"`
	Duplicate bool              `json:"duplicate"`
}

// TestimonyResponse for a single testimony
type TestimonyResponse struct {
	BaseResponse
	Testimony *models.Testimony `json:"testimony"`
}

// TestimoniesResponse for testimony lists
type TestimoniesResponse struct {
	BaseResponse
	Testimonies []models.Testimony `json:"testimonies"`
	Count       int                `json:"count"` // Number of results in this response
	Total       int64              `json:"total"` // Total matching the filter
	Limit       int                `json:"limit"`
	Offset      int                `json:"offset"`
}

// JobStatusResponse is what clients poll after an upload
type JobStatusResponse struct {
	BaseResponse
	JobID       uint             `json:"job_id"`
	State       models.PollState `json:"state"`
	Type        models.JobType   `json:"type"`
	RetryCount  int              `json:"retry_count"`
	Attempts    int              `json:"attempts"`
	RunAfter    *time.Time       `json:"run_after,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorType   string           `json:"error_type,omitempty"`
	Result      models.JobResult `json:"result,omitempty"`
}

// WorkerStatsResponse combines pool counters and queue depth
type WorkerStatsResponse struct {
	BaseResponse
	Pool  *workers.PoolStats         `json:"pool,omitempty"`
	Queue map[models.JobStatus]int64 `json:"queue"`
}

// SearchResponse for semantic search
type SearchResponse struct {
	BaseResponse
	Query   string                 `json:"query"`
	Results []indexer.SearchResult `json:"results"`
	Count   int                    `json:"count"`
}

// PromptsResponse lists registered summary prompts
type PromptsResponse struct {
	BaseResponse
	Prompts []models.SummaryPrompt `json:"prompts"`
	Count   int                    `json:"count"`
}

// HealthResponse for health check endpoint
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Database  map[string]string `json:"database"`
}

// VersionResponse for the root endpoint
type VersionResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Status      string `json:"status"`
}
