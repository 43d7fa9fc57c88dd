package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TranscriptStatus is the primary lifecycle status of a transcript.
// Transitions are monotonic: pending -> parsing -> completed|failed.
type TranscriptStatus string

const (
	TranscriptStatusPending   TranscriptStatus = "pending"   // Created by ingestion, waiting for extraction
	TranscriptStatusParsing   TranscriptStatus = "parsing"   // Extraction in flight
	TranscriptStatusCompleted TranscriptStatus = "completed" // Insights persisted (terminal)
	TranscriptStatusFailed    TranscriptStatus = "failed"    // Validation or retry-exhausted failure (terminal)
)

// IsTerminal reports whether no further status transition is allowed.
func (s TranscriptStatus) IsTerminal() bool {
	return s == TranscriptStatusCompleted || s == TranscriptStatusFailed
}

// CanTransitionTo enforces the monotonic state machine. Risk assessment is an
// orthogonal attribute of completed transcripts, not a state here.
func (s TranscriptStatus) CanTransitionTo(next TranscriptStatus) bool {
	switch s {
	case TranscriptStatusPending:
		return next == TranscriptStatusParsing || next == TranscriptStatusFailed
	case TranscriptStatusParsing:
		return next == TranscriptStatusCompleted || next == TranscriptStatusFailed
	}
	return false
}

// TranscriptSource identifies which of the two note-taking origins supplied
// the raw text.
type TranscriptSource string

const (
	TranscriptSourceFireflies TranscriptSource = "fireflies"
	TranscriptSourceOtter     TranscriptSource = "otter"
)

// Transcript bounds for extraction input. Anything outside is rejected before
// any external call is made.
const (
	TranscriptMinChars = 200
	TranscriptMaxChars = 250_000
)

// Transcript is one meeting's raw text plus the insights derived from it.
// Mutated only by the extraction worker (status + insight fields) and the
// risk-analysis worker (risk_assessment); never deleted by the pipeline.
type Transcript struct {
	ID            uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OpportunityID uuid.UUID        `json:"opportunity_id" gorm:"type:uuid;not null;index"`
	SourceKind    TranscriptSource `json:"source_kind" gorm:"type:varchar(50);not null"`
	MeetingDate   time.Time        `json:"meeting_date" gorm:"not null;index"`
	Status        TranscriptStatus `json:"status" gorm:"type:varchar(20);not null;index;default:'pending'"`
	RawText       string           `json:"raw_text" gorm:"type:text;not null"`

	// Extracted insight fields, present only once status is completed.
	PainPoints          []string             `json:"pain_points,omitempty" gorm:"type:jsonb;serializer:json"`
	Goals               []string             `json:"goals,omitempty" gorm:"type:jsonb;serializer:json"`
	NextSteps           []string             `json:"next_steps,omitempty" gorm:"type:jsonb;serializer:json"`
	WhyAndWhyNow        []string             `json:"why_and_why_now,omitempty" gorm:"type:jsonb;serializer:json"`
	QuantifiableMetrics []string             `json:"quantifiable_metrics,omitempty" gorm:"type:jsonb;serializer:json"`
	KeyQuotes           []string             `json:"key_quotes,omitempty" gorm:"type:jsonb;serializer:json"`
	Objections          []string             `json:"objections,omitempty" gorm:"type:jsonb;serializer:json"`
	CompetitionMentions []CompetitionMention `json:"competition_mentions,omitempty" gorm:"type:jsonb;serializer:json"`
	DecisionProcess     *DecisionProcess     `json:"decision_process,omitempty" gorm:"type:jsonb;serializer:json"`
	CallSentiment       *CallSentiment       `json:"call_sentiment,omitempty" gorm:"type:jsonb;serializer:json"`

	// Attached later by the risk-analysis worker; its absence never blocks
	// consolidation.
	RiskAssessment *RiskAssessment `json:"risk_assessment,omitempty" gorm:"type:jsonb;serializer:json"`

	ParsedAt    *time.Time     `json:"parsed_at,omitempty"`
	LastError   *string        `json:"last_error,omitempty" gorm:"type:text"`
	RawResponse datatypes.JSON `json:"raw_response,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Transcript) TableName() string {
	return "transcripts"
}

// NewTranscript creates a pending transcript for an opportunity. The
// ingestion boundary is the only caller.
func NewTranscript(opportunityID uuid.UUID, source TranscriptSource, meetingDate time.Time, rawText string) *Transcript {
	return &Transcript{
		ID:            uuid.New(),
		OpportunityID: opportunityID,
		SourceKind:    source,
		MeetingDate:   meetingDate,
		Status:        TranscriptStatusPending,
		RawText:       rawText,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

// ApplyInsights copies extracted fields onto the transcript.
func (t *Transcript) ApplyInsights(in *CallInsights) {
	t.PainPoints = in.PainPoints
	t.Goals = in.Goals
	t.NextSteps = in.NextSteps
	t.WhyAndWhyNow = in.WhyAndWhyNow
	t.QuantifiableMetrics = in.QuantifiableMetrics
	t.KeyQuotes = in.KeyQuotes
	t.Objections = in.Objections
	t.CompetitionMentions = in.CompetitionMentions
	dp := in.DecisionProcess
	t.DecisionProcess = &dp
	cs := in.CallSentiment
	t.CallSentiment = &cs
}

// Digest normalizes the transcript into the per-call record the synthesis
// service consumes.
func (t *Transcript) Digest() CallDigest {
	d := CallDigest{
		CallID:       t.ID.String(),
		MeetingDate:  t.MeetingDate.Format("2006-01-02"),
		PainPoints:   t.PainPoints,
		Goals:        t.Goals,
		WhyAndWhyNow: t.WhyAndWhyNow,
		Metrics:      t.QuantifiableMetrics,
	}
	if t.CallSentiment != nil {
		d.CallSentiment = *t.CallSentiment
	}
	if t.RiskAssessment != nil {
		d.RiskAssessment = t.RiskAssessment
	}
	return d
}
