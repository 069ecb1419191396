package models

import "time"

// SummaryPrompt is a content-addressed summary prompt configuration.
// Every summary points back at the row that produced it.
type SummaryPrompt struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `gorm:"not null;index" json:"name"`
	Version     string    `gorm:"not null" json:"version"`
	Template    string    `gorm:"type:text;not null" json:"template"`
	Model       string    `gorm:"not null" json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	ContentHash string    `gorm:"size:64;not null;uniqueIndex" json:"content_hash"`
}

// TableName specifies the table name for GORM
func (SummaryPrompt) TableName() string {
	return "summary_prompts"
}
