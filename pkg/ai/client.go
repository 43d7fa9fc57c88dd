package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/salesight/salesight/internal/domain/entities"
	"github.com/salesight/salesight/pkg/config"
)

// Client is a minimal client for the Groq-style chat-completions API that
// backs the structured-extraction, risk-scoring and synthesis calls. Each
// call kind sends a fixed JSON output schema in the prompt and returns the
// assistant content verbatim; decoding and validation happen in the caller's
// parser so a malformed response is a first-class validation error there.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates an insight service client using values from the provided
// config. Pass a nil config to fall back to environment variables.
func NewClient(cfg *config.InsightConfig) *Client {
	var apiKey, base, model string
	var timeout time.Duration
	if cfg != nil {
		apiKey = cfg.APIKey
		base = cfg.BaseURL
		model = cfg.Model
		timeout = cfg.RequestTimeout
	}
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}
	if base == "" {
		base = os.Getenv("GROQ_API_URL")
		if base == "" {
			base = "https://api.groq.com"
		}
	}
	if model == "" {
		model = "llama-3.1-70b-versatile"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: base,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model       string      `json:"model,omitempty"`
	Messages    interface{} `json:"messages,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractCallInsights asks the extraction service to structure one
// transcript into the per-call insight schema. Returns raw assistant content.
func (c *Client) ExtractCallInsights(ctx context.Context, rawText string) (string, error) {
	return c.complete(ctx, extractionPrompt(rawText))
}

// AssessRisk asks the risk-scoring service for a deal-health judgment over a
// completed call's digest.
func (c *Client) AssessRisk(ctx context.Context, digest entities.CallDigest) (string, error) {
	b, err := json.Marshal(digest)
	if err != nil {
		return "", fmt.Errorf("marshal call digest: %w", err)
	}
	return c.complete(ctx, riskPrompt(string(b)))
}

// SynthesizeOpportunity asks the synthesis service to merge the ordered
// per-call digests into one consolidated record.
func (c *Client) SynthesizeOpportunity(ctx context.Context, digests []entities.CallDigest) (string, error) {
	b, err := json.Marshal(digests)
	if err != nil {
		return "", fmt.Errorf("marshal call digests: %w", err)
	}
	return c.complete(ctx, synthesisPrompt(string(b), len(digests)))
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    []map[string]string{{"role": "user", "content": prompt}},
		Temperature: 0.2,
		MaxTokens:   8000,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/openai/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", entities.TransientErrorf("insight service request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", entities.TransientErrorf("insight service returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("insight service returned status %d", resp.StatusCode)
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", entities.ValidationErrorf("decode insight service response: %v", err)
	}
	if len(cr.Choices) == 0 {
		return "", entities.ValidationErrorf("empty response from insight service")
	}
	return cr.Choices[0].Message.Content, nil
}
