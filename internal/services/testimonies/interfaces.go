package testimonies

import (
	"context"
	"errors"

	"github.com/killallgit/testimony-api/internal/models"
)

var (
	ErrTestimonyNotFound = errors.New("testimony not found")
	// ErrAlreadyTerminal is returned when a transition targets a record that
	// already reached completed, completed_empty or failed.
	ErrAlreadyTerminal = errors.New("testimony already in a terminal status")
)

// Repository persists testimony records and their status transitions
type Repository interface {
	Create(ctx context.Context, t *models.Testimony) error
	Get(ctx context.Context, id uint) (*models.Testimony, error)
	List(ctx context.Context, filter ListFilter) ([]models.Testimony, int64, error)
	FindDuplicate(ctx context.Context, hash, origin string) (*models.Testimony, bool, error)
	Delete(ctx context.Context, id uint) error

	// Worker transitions
	MarkProcessing(ctx context.Context, id uint) error
	MarkCompleted(ctx context.Context, id uint, transcript string) error
	MarkCompletedEmpty(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint) error
	SetSummary(ctx context.Context, id uint, summary string, promptID *uint) error

	// Maintenance
	ListCompleted(ctx context.Context, filter CompletedFilter) ([]models.Testimony, error)
}

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	Origin string
	Status models.TranscriptStatus
	Tag    string
	Limit  int
	Offset int
}

// CompletedFilter narrows ListCompleted
type CompletedFilter struct {
	WithSummary    bool // only rows that already have a summary
	WithoutSummary bool  // only rows that still need one
	PromptNot      *uint // only rows not summarized by this prompt
	Limit          int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
