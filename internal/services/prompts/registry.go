// Package prompts versions the summary prompt configurations. Each distinct
// (template, model, version) is stored once and summaries point at it.
package prompts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/killallgit/testimony-api/internal/models"
)

var ErrPromptNotFound = errors.New("summary prompt not found")

// Spec describes a prompt configuration to register
type Spec struct {
	Name        string
	Version     string
	Template    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// ContentHash identifies a prompt by its template, model and version.
// Fields are length-prefixed so no two triples collide by concatenation.
func ContentHash(template, model, version string) string {
	h := sha256.New()
	for _, part := range []string{template, model, version} {
		fmt.Fprintf(h, "%d:%s\n", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Registry stores prompt configurations
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a registry backed by db
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// GetOrCreate returns the id of the stored prompt matching spec,
// inserting it on first use. Concurrent callers get the same id.
func (r *Registry) GetOrCreate(ctx context.Context, spec Spec) (uint, error) {
	if strings.TrimSpace(spec.Template) == "" {
		return 0, fmt.Errorf("prompt template is empty")
	}
	if spec.Name == "" {
		spec.Name = "summary"
	}

	hash := ContentHash(spec.Template, spec.Model, spec.Version)

	if id, err := r.idByHash(ctx, hash); err == nil {
		return id, nil
	} else if !errors.Is(err, ErrPromptNotFound) {
		return 0, err
	}

	row := models.SummaryPrompt{
		Name:        spec.Name,
		Version:     spec.Version,
		Template:    spec.Template,
		Model:       spec.Model,
		Temperature: spec.Temperature,
		MaxTokens:   spec.MaxTokens,
		IsActive:    true,
		ContentHash: hash,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "content_hash"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("creating summary prompt: %w", err)
	}

	// Re-read: on conflict the insert was a no-op and row.ID is unset
	return r.idByHash(ctx, hash)
}

func (r *Registry) idByHash(ctx context.Context, hash string) (uint, error) {
	var p models.SummaryPrompt
	err := r.db.WithContext(ctx).Select("id").Where("content_hash = ?", hash).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrPromptNotFound
		}
		return 0, fmt.Errorf("looking up summary prompt: %w", err)
	}
	return p.ID, nil
}

// Get returns a prompt by id
func (r *Registry) Get(ctx context.Context, id uint) (*models.SummaryPrompt, error) {
	var p models.SummaryPrompt
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("getting summary prompt: %w", err)
	}
	return &p, nil
}

// List returns every stored prompt, newest first
func (r *Registry) List(ctx context.Context) ([]models.SummaryPrompt, error) {
	var out []models.SummaryPrompt
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing summary prompts: %w", err)
	}
	return out, nil
}
