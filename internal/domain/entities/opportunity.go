package entities

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is the sales-pipeline record that owns transcripts and carries
// the rolling consolidated view. The CRUD layer owns everything else about
// it; the pipeline only reads identity/owner and replaces the consolidated
// fields as a whole.
type Opportunity struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OwnerID uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name    string    `json:"name" gorm:"type:varchar(255);not null"`
	Stage   string    `json:"stage,omitempty" gorm:"type:varchar(100)"`

	ConsolidatedPainPoints     []string        `json:"consolidated_pain_points,omitempty" gorm:"type:jsonb;serializer:json"`
	ConsolidatedGoals          []string        `json:"consolidated_goals,omitempty" gorm:"type:jsonb;serializer:json"`
	ConsolidatedWhyAndWhyNow   []string        `json:"consolidated_why_and_why_now,omitempty" gorm:"type:jsonb;serializer:json"`
	ConsolidatedMetrics        []string        `json:"consolidated_metrics,omitempty" gorm:"type:jsonb;serializer:json"`
	ConsolidatedRiskAssessment *RiskAssessment `json:"consolidated_risk_assessment,omitempty" gorm:"type:jsonb;serializer:json"`
	SentimentTrend             string          `json:"sentiment_trend,omitempty" gorm:"type:text"`

	// LastConsolidatedAt and ConsolidationCallCount double as the optimistic
	// version of the consolidated view: a write only lands if both still
	// match the snapshot the worker started from.
	LastConsolidatedAt     *time.Time `json:"last_consolidated_at,omitempty"`
	ConsolidationCallCount int        `json:"consolidation_call_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Opportunity) TableName() string {
	return "opportunities"
}

// ConsolidatedView is the replacement value for an opportunity's consolidated
// fields. It is applied atomically or not at all.
type ConsolidatedView struct {
	PainPoints     []string
	Goals          []string
	WhyAndWhyNow   []string
	Metrics        []string
	RiskAssessment RiskAssessment
	SentimentTrend string
	ConsolidatedAt time.Time
	CallCount      int
}
