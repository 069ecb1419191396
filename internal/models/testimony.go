package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TranscriptStatus tracks a testimony through the transcription pipeline
type TranscriptStatus string

const (
	TranscriptPending        TranscriptStatus = "pending"         // created, not yet claimed
	TranscriptProcessing     TranscriptStatus = "processing"      // claimed by a worker
	TranscriptCompleted      TranscriptStatus = "completed"       // transcript present and non-empty
	TranscriptCompletedEmpty TranscriptStatus = "completed_empty" // provider returned no text
	TranscriptFailed         TranscriptStatus = "failed"          // retries exhausted or non-transient error
)

// TranscriptStatuses lists every status in lifecycle order
var TranscriptStatuses = []TranscriptStatus{
	TranscriptPending,
	TranscriptProcessing,
	TranscriptCompleted,
	TranscriptCompletedEmpty,
	TranscriptFailed,
}

// IsTerminal reports whether no further automatic transition happens
func (s TranscriptStatus) IsTerminal() bool {
	return s == TranscriptCompleted || s == TranscriptCompletedEmpty || s == TranscriptFailed
}

// InFlight reports whether a worker still owns (or will own) the record
func (s TranscriptStatus) InFlight() bool {
	return s == TranscriptPending || s == TranscriptProcessing
}

// ParseTranscriptStatus parses a status name, case-insensitively
func ParseTranscriptStatus(s string) (TranscriptStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range TranscriptStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Testimony is one uploaded testimony recording and everything derived from it
type Testimony struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Origin          string `gorm:"not null;index;index:idx_testimonies_hash_origin,priority:2" json:"origin"`
	AudioURL        string `gorm:"not null" json:"audio_url"`
	AudioHash       string `gorm:"size:64;index:idx_testimonies_hash_origin,priority:1" json:"audio_hash"`
	AudioDurationMS int64  `json:"audio_duration_ms"`
	UserFileName    string `json:"user_file_name,omitempty"`

	TranscriptStatus TranscriptStatus `gorm:"not null;default:'pending';index" json:"transcript_status"`
	Transcript       *string          `gorm:"type:text" json:"transcript"`
	Summary          *string          `gorm:"type:text" json:"summary"`
	SummaryPromptID  *uint            `gorm:"index" json:"summary_prompt_id"`
	SummaryPrompt    *SummaryPrompt   `gorm:"foreignKey:SummaryPromptID" json:"-"`

	Tags       datatypes.JSONSlice[string] `json:"tags"`
	RecordedAt datatypes.Date              `gorm:"index" json:"recorded_at"`
}

// TableName specifies the table name for GORM
func (Testimony) TableName() string {
	return "testimonies"
}

// BeforeCreate keeps new records consistent with their status: only a
// completed testimony carries a transcript or summary.
func (t *Testimony) BeforeCreate(tx *gorm.DB) error {
	if t.TranscriptStatus == "" {
		t.TranscriptStatus = TranscriptPending
	}
	if t.TranscriptStatus != TranscriptCompleted {
		t.Transcript = nil
		t.Summary = nil
		t.SummaryPromptID = nil
	}
	if t.Tags == nil {
		t.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}

// HasTranscript reports whether a non-empty transcript is stored
func (t *Testimony) HasTranscript() bool {
	return t.Transcript != nil && strings.TrimSpace(*t.Transcript) != ""
}

// HasSummary reports whether a non-empty summary is stored
func (t *Testimony) HasSummary() bool {
	return t.Summary != nil && strings.TrimSpace(*t.Summary) != ""
}

// TranscriptText returns the transcript or "" when absent
func (t *Testimony) TranscriptText() string {
	if t.Transcript == nil {
		return ""
	}
	return *t.Transcript
}

// SummaryText returns the summary or "" when absent
func (t *Testimony) SummaryText() string {
	if t.Summary == nil {
		return ""
	}
	return *t.Summary
}
