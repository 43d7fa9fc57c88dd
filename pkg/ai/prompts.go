package ai

import "fmt"

// Prompt builders. Each embeds the fixed JSON schema for its call kind; the
// parsers on the consumer side validate responses against the same schema.

const extractionSchema = `{
  "pain_points": ["string"],
  "goals": ["string"],
  "next_steps": ["string"],
  "why_and_why_now": ["string"],
  "quantifiable_metrics": ["string"],
  "key_quotes": ["string"],
  "objections": ["string"],
  "competition_mentions": [{"competitor": "string", "context": "string", "sentiment": "positive|neutral|negative"}],
  "decision_process": {"timeline": "string", "stakeholders": ["string"], "budget_context": "string", "approval_steps": ["string"]},
  "call_sentiment": {"overall": "positive|neutral|negative|mixed", "momentum": "accelerating|steady|stalling", "enthusiasm": "high|medium|low"}
}`

const riskSchema = `{
  "risk_level": "low|medium|high|critical",
  "risk_factors": [{"category": "string", "severity": "low|medium|high|critical", "description": "string", "evidence": "string", "resolved": false}],
  "overall_summary": "string"
}`

const synthesisSchema = `{
  "pain_points": ["string"],
  "goals": ["string"],
  "why_and_why_now": ["string"],
  "metrics": ["string"],
  "risk_assessment": ` + riskSchema + `,
  "sentiment_trend": "string"
}`

func extractionPrompt(rawText string) string {
	return fmt.Sprintf(`You are a sales analyst. Extract structured insights from this sales call transcript.

Return ONLY valid JSON matching exactly this schema (no prose, no markdown):
%s

Transcript:
%s`, extractionSchema, rawText)
}

func riskPrompt(digestJSON string) string {
	return fmt.Sprintf(`You are a sales deal-health analyst. Assess the risk signals in this structured call record.

Return ONLY valid JSON matching exactly this schema (no prose, no markdown):
%s

Call record:
%s`, riskSchema, digestJSON)
}

func synthesisPrompt(digestsJSON string, callCount int) string {
	return fmt.Sprintf(`You are a sales analyst. Merge these %d call records (ordered oldest to newest) for a single opportunity into ONE consolidated record.

Rules:
- Deduplicate pain points and goals by meaning, not exact wording; keep one representative phrasing for near-duplicates.
- Every distinct insight from every call must be represented, directly or merged.
- Weight the most recent call's risk signals most heavily, but retain unresolved historical risk factors.
- sentiment_trend should narrate how sentiment evolved across the calls in order.

Return ONLY valid JSON matching exactly this schema (no prose, no markdown):
%s

Call records:
%s`, callCount, synthesisSchema, digestsJSON)
}
