package entities

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PipelineJobStatus represents the status of an asynchronous pipeline job
type PipelineJobStatus string

const (
	PipelineJobStatusPending   PipelineJobStatus = "pending"   // Waiting for a worker to claim it
	PipelineJobStatusRunning   PipelineJobStatus = "running"   // Claimed by a worker
	PipelineJobStatusCompleted PipelineJobStatus = "completed" // All processing done
	PipelineJobStatusFailed    PipelineJobStatus = "failed"    // Processing failed
	PipelineJobStatusRetrying  PipelineJobStatus = "retrying"  // Retrying after a transient failure
)

// PipelineJobKind represents the pipeline stage a job belongs to
type PipelineJobKind string

const (
	PipelineJobKindExtract     PipelineJobKind = "extract"      // Structured extraction of one transcript
	PipelineJobKindRiskAnalyze PipelineJobKind = "risk_analyze" // Secondary risk pass on a completed transcript
	PipelineJobKindConsolidate PipelineJobKind = "consolidate"  // Cross-call consolidation for one opportunity
)

// PipelineJob is one unit of asynchronous work. Workers claim jobs with an
// atomic status update, so duplicate pollers never run the same job twice.
type PipelineJob struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Kind          PipelineJobKind   `json:"kind" gorm:"type:varchar(50);not null;index"`
	Status        PipelineJobStatus `json:"status" gorm:"type:varchar(50);not null;index;default:'pending'"`
	TranscriptID  *uuid.UUID        `json:"transcript_id,omitempty" gorm:"type:uuid;index"`
	OpportunityID uuid.UUID         `json:"opportunity_id" gorm:"type:uuid;not null;index"`

	StartedAt   *time.Time `json:"started_at,omitempty" gorm:"type:timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"type:timestamp"`
	RetryCount  int        `json:"retry_count" gorm:"type:integer;default:0"`
	MaxRetries  int        `json:"max_retries" gorm:"type:integer;default:3"`
	LastError   *string    `json:"last_error,omitempty" gorm:"type:text"`

	Metadata PipelineJobMetadata `json:"metadata,omitempty" gorm:"type:jsonb;serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// PipelineJobMetadata stores operator-facing details about a job run
type PipelineJobMetadata struct {
	TextLength       int                    `json:"text_length,omitempty"`
	CallCount        int                    `json:"call_count,omitempty"`
	ProcessingTimeMs int64                  `json:"processing_time_ms,omitempty"`
	ErrorDetails     map[string]interface{} `json:"error_details,omitempty"`
}

// Scan implements sql.Scanner interface for GORM
func (m *PipelineJobMetadata) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &m)
}

// Value implements driver.Valuer interface for GORM
func (m PipelineJobMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// NewExtractJob creates an extraction job for a transcript
func NewExtractJob(transcriptID, opportunityID uuid.UUID) *PipelineJob {
	return newJob(PipelineJobKindExtract, &transcriptID, opportunityID)
}

// NewRiskAnalyzeJob creates a risk-analysis job for a completed transcript
func NewRiskAnalyzeJob(transcriptID, opportunityID uuid.UUID) *PipelineJob {
	return newJob(PipelineJobKindRiskAnalyze, &transcriptID, opportunityID)
}

// NewConsolidateJob creates a consolidation job for an opportunity
func NewConsolidateJob(opportunityID uuid.UUID) *PipelineJob {
	return newJob(PipelineJobKindConsolidate, nil, opportunityID)
}

func newJob(kind PipelineJobKind, transcriptID *uuid.UUID, opportunityID uuid.UUID) *PipelineJob {
	return &PipelineJob{
		ID:            uuid.New(),
		Kind:          kind,
		Status:        PipelineJobStatusPending,
		TranscriptID:  transcriptID,
		OpportunityID: opportunityID,
		RetryCount:    0,
		MaxRetries:    3,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

// IsRetryable checks if the job still has retry budget
func (j *PipelineJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// TableName specifies the table name for GORM
func (PipelineJob) TableName() string {
	return "pipeline_jobs"
}
