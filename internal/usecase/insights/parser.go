package insights

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/salesight/salesight/internal/domain/entities"
)

// Parser decodes and validates the loosely-typed JSON the external services
// return. A schema mismatch surfaces as a ValidationError, never a crash.
type Parser struct {
	validate *validator.Validate
}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// ParseCallInsights parses the extraction service response into the fixed
// per-call schema.
func (p *Parser) ParseCallInsights(jsonString string) (*entities.CallInsights, error) {
	jsonString = extractJSON(jsonString)

	var result entities.CallInsights
	if err := json.Unmarshal([]byte(jsonString), &result); err != nil {
		return nil, entities.ValidationErrorf("parse extraction response: %v", err)
	}
	if err := p.validate.Struct(&result); err != nil {
		return nil, entities.ValidationErrorf("extraction response schema: %v", err)
	}

	normalizeInsights(&result)
	return &result, nil
}

// ParseRiskAssessment parses the risk-scoring service response.
func (p *Parser) ParseRiskAssessment(jsonString string) (*entities.RiskAssessment, error) {
	jsonString = extractJSON(jsonString)

	var result entities.RiskAssessment
	if err := json.Unmarshal([]byte(jsonString), &result); err != nil {
		return nil, entities.ValidationErrorf("parse risk response: %v", err)
	}
	if err := p.validate.Struct(&result); err != nil {
		return nil, entities.ValidationErrorf("risk response schema: %v", err)
	}
	if result.RiskFactors == nil {
		result.RiskFactors = make([]entities.RiskFactor, 0)
	}
	return &result, nil
}

// ParseConsolidatedInsights parses the synthesis service response.
func (p *Parser) ParseConsolidatedInsights(jsonString string) (*entities.ConsolidatedInsights, error) {
	jsonString = extractJSON(jsonString)

	var result entities.ConsolidatedInsights
	if err := json.Unmarshal([]byte(jsonString), &result); err != nil {
		return nil, entities.ValidationErrorf("parse synthesis response: %v", err)
	}
	if err := p.validate.Struct(&result); err != nil {
		return nil, entities.ValidationErrorf("synthesis response schema: %v", err)
	}
	if result.PainPoints == nil {
		result.PainPoints = make([]string, 0)
	}
	if result.Goals == nil {
		result.Goals = make([]string, 0)
	}
	if result.WhyAndWhyNow == nil {
		result.WhyAndWhyNow = make([]string, 0)
	}
	if result.Metrics == nil {
		result.Metrics = make([]string, 0)
	}
	if result.RiskAssessment.RiskFactors == nil {
		result.RiskAssessment.RiskFactors = make([]entities.RiskFactor, 0)
	}
	return &result, nil
}

// ValidateTranscriptLength checks the raw text bounds before any external
// call is made. Out-of-bounds input is a terminal validation error.
func (p *Parser) ValidateTranscriptLength(rawText string) error {
	n := len(rawText)
	if n < entities.TranscriptMinChars {
		return entities.ValidationErrorf("transcript too short: %d characters (minimum: %d)", n, entities.TranscriptMinChars)
	}
	if n > entities.TranscriptMaxChars {
		return entities.ValidationErrorf("transcript too long: %d characters (maximum: %d)", n, entities.TranscriptMaxChars)
	}
	return nil
}

// normalizeInsights initializes nil collections so completed transcripts
// always carry every primary field.
func normalizeInsights(in *entities.CallInsights) {
	if in.PainPoints == nil {
		in.PainPoints = make([]string, 0)
	}
	if in.Goals == nil {
		in.Goals = make([]string, 0)
	}
	if in.NextSteps == nil {
		in.NextSteps = make([]string, 0)
	}
	if in.WhyAndWhyNow == nil {
		in.WhyAndWhyNow = make([]string, 0)
	}
	if in.QuantifiableMetrics == nil {
		in.QuantifiableMetrics = make([]string, 0)
	}
	if in.KeyQuotes == nil {
		in.KeyQuotes = make([]string, 0)
	}
	if in.Objections == nil {
		in.Objections = make([]string, 0)
	}
	if in.CompetitionMentions == nil {
		in.CompetitionMentions = make([]entities.CompetitionMention, 0)
	}
	if in.DecisionProcess.Stakeholders == nil {
		in.DecisionProcess.Stakeholders = make([]string, 0)
	}
	if in.DecisionProcess.ApprovalSteps == nil {
		in.DecisionProcess.ApprovalSteps = make([]string, 0)
	}
}

// extractJSON extracts JSON content from markdown code blocks or plain text
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}
