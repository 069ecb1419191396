package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// JobStatus represents the status of a job in the queue
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusRetrying   JobStatus = "retrying" // waiting for RunAfter before the next attempt
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed" // terminal
)

// JobType represents the type of job to be processed
type JobType string

const (
	JobTypeTranscribeTestimony JobType = "transcribe_testimony"
)

// Payload keys for JobTypeTranscribeTestimony
const (
	PayloadTestimonyID = "testimony_id"
	PayloadAudioURL    = "audio_url"
)

// PollState is the externally visible job state returned by status polling
type PollState string

const (
	PollPending PollState = "PENDING"
	PollStarted PollState = "STARTED"
	PollRetry   PollState = "RETRY"
	PollSuccess PollState = "SUCCESS"
	PollFailure PollState = "FAILURE"
)

// JobErrorType represents the category of error that occurred
type JobErrorType string

const (
	ErrorTypeTransient JobErrorType = "transient" // rate limit or timeout, retried
	ErrorTypeProvider  JobErrorType = "provider"  // provider rejected the request
	ErrorTypeStorage   JobErrorType = "storage"   // audio could not be fetched or staged
	ErrorTypeSystem    JobErrorType = "system"    // database, worker, or other system error
	ErrorTypeNotFound  JobErrorType = "not_found" // testimony no longer exists
)

// StructuredJobError represents a structured error with classification information
type StructuredJobError struct {
	Type     JobErrorType
	Code     string
	Message  string
	Details  string
	Original error
}

func (e *StructuredJobError) Error() string {
	return e.Message
}

func (e *StructuredJobError) Unwrap() error {
	return e.Original
}

// NewJobError creates a structured error of the given type
func NewJobError(errType JobErrorType, code, message string, original error) *StructuredJobError {
	details := ""
	if original != nil {
		details = original.Error()
	}
	return &StructuredJobError{
		Type:     errType,
		Code:     code,
		Message:  message,
		Details:  details,
		Original: original,
	}
}

// Job represents a background job in the queue
type Job struct {
	gorm.Model
	Type         JobType    `json:"type" gorm:"not null;index:idx_jobs_type_status"`
	Status       JobStatus  `json:"status" gorm:"default:'pending';index:idx_jobs_type_status;index:idx_jobs_status_priority"`
	Payload      JobPayload `json:"payload" gorm:"type:json"`
	Priority     int        `json:"priority" gorm:"default:0;index:idx_jobs_status_priority"`
	MaxRetries   int        `json:"max_retries" gorm:"default:3"`
	RetryCount   int        `json:"retry_count" gorm:"default:0"` // retries scheduled so far
	Attempts     int        `json:"attempts" gorm:"default:0"`    // times claimed by a worker
	RunAfter     *time.Time `json:"run_after,omitempty" gorm:"index"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	LastFailedAt *time.Time `json:"last_failed_at"`
	Error        string     `json:"error,omitempty"`
	Result       JobResult  `json:"result,omitempty" gorm:"type:json"`
	WorkerID     string     `json:"worker_id,omitempty"`

	// Error classification fields
	ErrorType    string `json:"error_type,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`

	CreatedBy string `json:"created_by,omitempty"` // "api", "watcher", "cli"
}

// JobPayload represents the input data for a job
type JobPayload map[string]interface{}

// Value implements driver.Valuer interface for JobPayload
func (p JobPayload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for JobPayload
func (p *JobPayload) Scan(value interface{}) error {
	m := make(map[string]interface{})
	if err := scanJSON(value, &m); err != nil {
		return err
	}
	*p = m
	return nil
}

// JobResult represents the output data from a completed job
type JobResult map[string]interface{}

// Value implements driver.Valuer interface for JobResult
func (r JobResult) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for JobResult
func (r *JobResult) Scan(value interface{}) error {
	m := make(map[string]interface{})
	if err := scanJSON(value, &m); err != nil {
		return err
	}
	*r = m
	return nil
}

func scanJSON(value interface{}, dst *map[string]interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}

// Helper methods

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// PollState maps the internal status to the externally visible one
func (j *Job) PollState() PollState {
	switch j.Status {
	case JobStatusProcessing:
		return PollStarted
	case JobStatusRetrying:
		return PollRetry
	case JobStatusCompleted:
		return PollSuccess
	case JobStatusFailed:
		return PollFailure
	default:
		return PollPending
	}
}

// GetPayloadValue safely retrieves a value from the payload
func (j *Job) GetPayloadValue(key string) (interface{}, bool) {
	if j.Payload == nil {
		return nil, false
	}
	val, ok := j.Payload[key]
	return val, ok
}

// GetPayloadString safely retrieves a string value from the payload
func (j *Job) GetPayloadString(key string) (string, bool) {
	val, ok := j.GetPayloadValue(key)
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetPayloadUint retrieves a numeric payload value as uint.
// JSON numbers come back as float64.
func (j *Job) GetPayloadUint(key string) (uint, bool) {
	val, ok := j.GetPayloadValue(key)
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), v >= 0
	case int64:
		return uint(v), v >= 0
	case float64:
		return uint(v), v >= 0 && v == float64(uint(v))
	default:
		return 0, false
	}
}

// SetResult sets a result value
func (j *Job) SetResult(key string, value interface{}) {
	if j.Result == nil {
		j.Result = make(JobResult)
	}
	j.Result[key] = value
}

// TableName specifies the table name for GORM
func (Job) TableName() string {
	return "jobs"
}
