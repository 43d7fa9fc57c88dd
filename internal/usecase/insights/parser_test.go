package insights

import (
	"errors"
	"strings"
	"testing"

	"github.com/salesight/salesight/internal/domain/entities"
)

const validExtraction = `{
  "pain_points": ["manual pipeline reviews eat a full day per week"],
  "goals": ["cut forecast prep to under an hour"],
  "next_steps": ["security review call next Tuesday"],
  "why_and_why_now": ["new CRO mandate to fix forecast accuracy this quarter"],
  "quantifiable_metrics": ["8 hours per week on manual reporting"],
  "key_quotes": ["we simply cannot keep doing this by hand"],
  "objections": ["worried about CRM integration effort"],
  "competition_mentions": [{"competitor": "Clari", "context": "evaluated last year", "sentiment": "negative"}],
  "decision_process": {"timeline": "decision by end of Q2", "stakeholders": ["VP Sales", "RevOps lead"], "budget_context": "budget approved", "approval_steps": ["security review", "legal"]},
  "call_sentiment": {"overall": "positive", "momentum": "accelerating", "enthusiasm": "high"}
}`

func TestParseCallInsights_Valid(t *testing.T) {
	p := NewParser()

	got, err := p.ParseCallInsights(validExtraction)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.PainPoints) != 1 || len(got.Goals) != 1 {
		t.Fatalf("primary fields not parsed: %+v", got)
	}
	if got.CallSentiment.Overall != "positive" {
		t.Fatalf("sentiment = %q", got.CallSentiment.Overall)
	}
	if got.CompetitionMentions[0].Competitor != "Clari" {
		t.Fatalf("competition mention not parsed")
	}
}

func TestParseCallInsights_MarkdownFences(t *testing.T) {
	p := NewParser()

	wrapped := "```json\n" + validExtraction + "\n```"
	got, err := p.ParseCallInsights(wrapped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.PainPoints) != 1 {
		t.Fatal("fenced response not parsed")
	}
}

func TestParseCallInsights_MalformedJSON(t *testing.T) {
	p := NewParser()

	_, err := p.ParseCallInsights(`{"pain_points": [`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, entities.ErrValidation) {
		t.Fatalf("malformed JSON must be a validation error, got %v", err)
	}
}

func TestParseCallInsights_SchemaViolation(t *testing.T) {
	p := NewParser()

	// Sentiment outside the allowed set.
	bad := strings.Replace(validExtraction, `"overall": "positive"`, `"overall": "ecstatic"`, 1)
	_, err := p.ParseCallInsights(bad)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, entities.ErrValidation) {
		t.Fatalf("schema violation must be a validation error, got %v", err)
	}
}

func TestParseCallInsights_NormalizesNilCollections(t *testing.T) {
	p := NewParser()

	minimal := `{"call_sentiment": {"overall": "neutral"}}`
	got, err := p.ParseCallInsights(minimal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PainPoints == nil || got.Goals == nil || got.CompetitionMentions == nil {
		t.Fatal("nil collections must be normalized to empty")
	}
	if got.DecisionProcess.Stakeholders == nil {
		t.Fatal("decision process collections must be normalized")
	}
}

func TestParseRiskAssessment(t *testing.T) {
	p := NewParser()

	got, err := p.ParseRiskAssessment(`{
	  "risk_level": "high",
	  "risk_factors": [{"category": "budget", "severity": "high", "description": "budget owner absent from all calls", "evidence": "no finance attendee", "resolved": false}],
	  "overall_summary": "deal health at risk"
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != entities.RiskLevelHigh {
		t.Fatalf("risk level = %s", got.RiskLevel)
	}
	if len(got.RiskFactors) != 1 || got.RiskFactors[0].Resolved {
		t.Fatalf("risk factors not parsed: %+v", got.RiskFactors)
	}

	_, err = p.ParseRiskAssessment(`{"risk_level": "catastrophic", "risk_factors": []}`)
	if !errors.Is(err, entities.ErrValidation) {
		t.Fatalf("unknown risk level must be a validation error, got %v", err)
	}
}

func TestParseConsolidatedInsights(t *testing.T) {
	p := NewParser()

	got, err := p.ParseConsolidatedInsights(`{
	  "pain_points": ["manual reporting"],
	  "goals": ["automate forecast prep"],
	  "why_and_why_now": ["CRO mandate"],
	  "metrics": ["8 hours per week"],
	  "risk_assessment": {"risk_level": "medium", "risk_factors": [], "overall_summary": "steady"},
	  "sentiment_trend": "cautious first call, clearly warming by the second"
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SentimentTrend == "" {
		t.Fatal("sentiment trend not parsed")
	}
	if got.RiskAssessment.RiskFactors == nil {
		t.Fatal("risk factors must be normalized to empty")
	}

	// Missing sentiment_trend fails validation.
	_, err = p.ParseConsolidatedInsights(`{
	  "pain_points": [], "goals": [], "why_and_why_now": [], "metrics": [],
	  "risk_assessment": {"risk_level": "low", "risk_factors": []}
	}`)
	if !errors.Is(err, entities.ErrValidation) {
		t.Fatalf("missing sentiment trend must be a validation error, got %v", err)
	}
}

func TestValidateTranscriptLength(t *testing.T) {
	p := NewParser()

	if err := p.ValidateTranscriptLength(strings.Repeat("a", 150)); !errors.Is(err, entities.ErrValidation) {
		t.Fatalf("150 chars must be rejected as too short, got %v", err)
	}
	if err := p.ValidateTranscriptLength(strings.Repeat("a", entities.TranscriptMinChars)); err != nil {
		t.Fatalf("minimum length must be accepted: %v", err)
	}
	if err := p.ValidateTranscriptLength(strings.Repeat("a", entities.TranscriptMaxChars+1)); !errors.Is(err, entities.ErrValidation) {
		t.Fatalf("oversized transcript must be rejected, got %v", err)
	}
}
