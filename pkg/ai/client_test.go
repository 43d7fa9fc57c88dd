package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/salesight/salesight/internal/domain/entities"
	"github.com/salesight/salesight/pkg/config"
)

func newTestClient(url string) *Client {
	return NewClient(&config.InsightConfig{APIKey: "test-key", BaseURL: url, Model: "test-model"})
}

func chatReply(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
}

func TestExtractCallInsights_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST got %s", r.Method)
		}
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var payload ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if payload.Model != "test-model" {
			t.Fatalf("unexpected model %q", payload.Model)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(chatReply(`{"pain_points": []}`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	content, err := client.ExtractCallInsights(context.Background(), "transcript text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != `{"pain_points": []}` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestAssessRisk_SendsDigest(t *testing.T) {
	var seenPrompt string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []map[string]string `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		seenPrompt = payload.Messages[0]["content"]
		json.NewEncoder(w).Encode(chatReply(`{"risk_level": "low"}`))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	digest := entities.CallDigest{CallID: "call-1", PainPoints: []string{"manual reporting"}}
	if _, err := client.AssessRisk(context.Background(), digest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(seenPrompt, "call-1") || !strings.Contains(seenPrompt, "manual reporting") {
		t.Fatalf("digest not embedded in prompt")
	}
}

func TestComplete_RateLimitIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.ExtractCallInsights(context.Background(), "text")
	if !errors.Is(err, entities.ErrTransient) {
		t.Fatalf("429 must be transient, got %v", err)
	}
}

func TestComplete_ServerErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.SynthesizeOpportunity(context.Background(), []entities.CallDigest{{CallID: "c"}})
	if !errors.Is(err, entities.ErrTransient) {
		t.Fatalf("5xx must be transient, got %v", err)
	}
}

func TestComplete_ClientErrorIsNotTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.ExtractCallInsights(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, entities.ErrTransient) {
		t.Fatal("4xx must not be retried")
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.ExtractCallInsights(context.Background(), "text")
	if !errors.Is(err, entities.ErrValidation) {
		t.Fatalf("empty choices must be a validation error, got %v", err)
	}
}
