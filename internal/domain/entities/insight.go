package entities

// CallInsights is the fixed extraction schema for one call. The parser
// rejects responses that fail these validation tags; no partial result is
// ever written.
type CallInsights struct {
	PainPoints          []string             `json:"pain_points"`
	Goals               []string             `json:"goals"`
	NextSteps           []string             `json:"next_steps"`
	WhyAndWhyNow        []string             `json:"why_and_why_now"`
	QuantifiableMetrics []string             `json:"quantifiable_metrics"`
	KeyQuotes           []string             `json:"key_quotes"`
	Objections          []string             `json:"objections"`
	CompetitionMentions []CompetitionMention `json:"competition_mentions" validate:"dive"`
	DecisionProcess     DecisionProcess      `json:"decision_process"`
	CallSentiment       CallSentiment        `json:"call_sentiment" validate:"required"`
}

// CompetitionMention records one competitor reference and its framing.
type CompetitionMention struct {
	Competitor string `json:"competitor" validate:"required"`
	Context    string `json:"context"`
	Sentiment  string `json:"sentiment" validate:"omitempty,oneof=positive neutral negative"`
}

// DecisionProcess captures how the buyer makes the purchasing decision.
type DecisionProcess struct {
	Timeline      string   `json:"timeline"`
	Stakeholders  []string `json:"stakeholders"`
	BudgetContext string   `json:"budget_context"`
	ApprovalSteps []string `json:"approval_steps"`
}

// CallSentiment is the analyst read of a single call's tone.
type CallSentiment struct {
	Overall    string `json:"overall" validate:"required,oneof=positive neutral negative mixed"`
	Momentum   string `json:"momentum" validate:"omitempty,oneof=accelerating steady stalling"`
	Enthusiasm string `json:"enthusiasm" validate:"omitempty,oneof=high medium low"`
}

// RiskLevel grades deal risk from low to critical.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// Rank orders risk levels for comparison. Unknown values rank lowest.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLevelLow:
		return 1
	case RiskLevelMedium:
		return 2
	case RiskLevelHigh:
		return 3
	case RiskLevelCritical:
		return 4
	}
	return 0
}

// RiskAssessment is the risk-scoring schema, attached to a single transcript
// by the risk worker and recomputed for the opportunity at consolidation.
type RiskAssessment struct {
	RiskLevel      RiskLevel    `json:"risk_level" validate:"required,oneof=low medium high critical"`
	RiskFactors    []RiskFactor `json:"risk_factors" validate:"dive"`
	OverallSummary string       `json:"overall_summary"`
}

// RiskFactor is one identified deal risk. Resolved factors are kept for
// history but excluded from risk-level aggregation.
type RiskFactor struct {
	Category    string    `json:"category"`
	Severity    RiskLevel `json:"severity" validate:"required,oneof=low medium high critical"`
	Description string    `json:"description" validate:"required"`
	Evidence    string    `json:"evidence"`
	Resolved    bool      `json:"resolved"`
}

// CallDigest is the compact per-call record fed to the risk and synthesis
// prompts. It carries only the fields those prompts reason over.
type CallDigest struct {
	CallID         string          `json:"call_id"`
	MeetingDate    string          `json:"meeting_date"`
	PainPoints     []string        `json:"pain_points"`
	Goals          []string        `json:"goals"`
	WhyAndWhyNow   []string        `json:"why_and_why_now"`
	Metrics        []string        `json:"metrics"`
	CallSentiment  CallSentiment   `json:"call_sentiment"`
	RiskAssessment *RiskAssessment `json:"risk_assessment,omitempty"`
}

// ConsolidatedInsights is the synthesis schema: one merged record for an
// opportunity's whole call history.
type ConsolidatedInsights struct {
	PainPoints     []string       `json:"pain_points"`
	Goals          []string       `json:"goals"`
	WhyAndWhyNow   []string       `json:"why_and_why_now"`
	Metrics        []string       `json:"metrics"`
	RiskAssessment RiskAssessment `json:"risk_assessment" validate:"required"`
	SentimentTrend string         `json:"sentiment_trend" validate:"required"`
}
