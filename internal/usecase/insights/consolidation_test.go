package insights

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/salesight/salesight/internal/domain/entities"
)

// completeCall ingests a transcript and drives it through extraction with a
// canned per-call result.
func (f *fixture) completeCall(t *testing.T, opp *entities.Opportunity, when time.Time, painPoints, goals []string, sentiment string) *entities.Transcript {
	t.Helper()
	f.client.extractFn = func(context.Context, string) (string, error) {
		payload := map[string]interface{}{
			"pain_points":     painPoints,
			"goals":           goals,
			"why_and_why_now": []string{"initiative deadline this quarter"},
			"call_sentiment":  map[string]string{"overall": sentiment},
		}
		raw, _ := json.Marshal(payload)
		return string(raw), nil
	}
	tr, job := f.seedPendingTranscript(opp, when)
	if err := f.svc.processExtraction(context.Background(), job); err != nil {
		t.Fatalf("extraction for seeded call: %v", err)
	}
	return tr
}

func synthesisResponse(painPoints, goals []string, riskLevel string, factors []entities.RiskFactor) string {
	payload := map[string]interface{}{
		"pain_points":     painPoints,
		"goals":           goals,
		"why_and_why_now": []string{"initiative deadline this quarter"},
		"metrics":         []string{},
		"risk_assessment": map[string]interface{}{
			"risk_level":      riskLevel,
			"risk_factors":    factors,
			"overall_summary": "synthesized",
		},
		"sentiment_trend": "guarded early, warming on the later calls",
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestCheckAndTrigger_BelowThreshold(t *testing.T) {
	f := newFixture()
	opp := f.seedOpportunity()
	f.completeCall(t, opp, time.Now(), []string{"manual reporting"}, []string{"automate reviews"}, "positive")

	if err := f.svc.CheckAndTrigger(context.Background(), opp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.jobs.ofKind(entities.PipelineJobKindConsolidate)) != 0 {
		t.Fatal("one completed call must not enqueue consolidation")
	}
}

func TestCheckAndTrigger_AtThreshold(t *testing.T) {
	f := newFixture()
	opp := f.seedOpportunity()
	f.completeCall(t, opp, time.Now().Add(-48*time.Hour), []string{"manual reporting"}, []string{"automate reviews"}, "neutral")
	f.completeCall(t, opp, time.Now(), []string{"forecast accuracy"}, []string{"hit the board number"}, "positive")

	// The second completion already triggered once through fan-out.
	if got := len(f.jobs.ofKind(entities.PipelineJobKindConsolidate)); got != 1 {
		t.Fatalf("consolidate jobs after second completion = %d, want 1", got)
	}

	// Every further completed call past the threshold re-triggers.
	f.completeCall(t, opp, time.Now().Add(time.Hour), []string{"tool sprawl"}, []string{"consolidate vendors"}, "positive")
	if got := len(f.jobs.ofKind(entities.PipelineJobKindConsolidate)); got != 2 {
		t.Fatalf("consolidate jobs after third completion = %d, want 2", got)
	}
}

func TestConsolidation_HappyPath(t *testing.T) {
	f := newFixture()
	opp := f.seedOpportunity()
	f.completeCall(t, opp, time.Now().Add(-48*time.Hour), []string{"manual reporting"}, []string{"automate reviews"}, "neutral")
	f.completeCall(t, opp, time.Now(), []string{"forecast accuracy"}, []string{"hit the board number"}, "positive")

	f.client.synthesizeFn = func(_ context.Context, digests []entities.CallDigest) (string, error) {
		if len(digests) != 2 {
			t.Fatalf("synthesis digests = %d, want 2", len(digests))
		}
		if digests[0].MeetingDate > digests[1].MeetingDate {
			t.Fatal("digests must be ordered oldest to newest")
		}
		return synthesisResponse(
			[]string{"manual reporting", "forecast accuracy"},
			[]string{"automate reviews", "hit the board number"},
			"medium", []entities.RiskFactor{},
		), nil
	}

	job := f.jobs.ofKind(entities.PipelineJobKindConsolidate)[0]
	if err := f.svc.processConsolidation(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := f.opps.GetByID(context.Background(), opp.ID)
	if got.ConsolidationCallCount != 2 {
		t.Fatalf("call count = %d, want 2", got.ConsolidationCallCount)
	}
	if got.LastConsolidatedAt == nil {
		t.Fatal("consolidated timestamp not set")
	}
	if len(got.ConsolidatedPainPoints) != 2 || len(got.ConsolidatedGoals) != 2 {
		t.Fatalf("consolidated lists not written: %+v", got)
	}
	if got.SentimentTrend == "" {
		t.Fatal("sentiment trend not written")
	}
	if f.publisher.ofKind(entities.NotificationKindSummaryUpdated) != 1 {
		t.Fatal("consolidation must publish one summary-updated event")
	}
}

func TestConsolidation_MalformedSynthesisLeavesSnapshotUntouched(t *testing.T) {
	f := newFixture()
	opp := f.seedOpportunity()
	f.completeCall(t, opp, time.Now().Add(-48*time.Hour), []string{"manual reporting"}, []string{"automate reviews"}, "neutral")
	f.completeCall(t, opp, time.Now(), []string{"forecast accuracy"}, []string{"hit the board number"}, "positive")

	f.client.synthesizeFn = func(context.Context, []entities.CallDigest) (string, error) {
		return `{"pain_points": "should be a list"}`, nil
	}

	job := f.jobs.ofKind(entities.PipelineJobKindConsolidate)[0]
	err := f.svc.processConsolidation(context.Background(), job)
	if !errors.Is(err, entities.ErrTransient) {
		t.Fatalf("malformed synthesis must be retryable, got %v", err)
	}

	got, _ := f.opps.GetByID(context.Background(), opp.ID)
	if got.LastConsolidatedAt != nil || got.ConsolidationCallCount != 0 {
		t.Fatal("failed consolidation must not write anything")
	}
	if f.publisher.ofKind(entities.NotificationKindSummaryUpdated) != 0 {
		t.Fatal("failed consolidation must publish nothing")
	}
}

func TestConsolidation_DroppedInsightRejected(t *testing.T) {
	f := newFixture()
	opp := f.seedOpportunity()
	f.completeCall(t, opp, time.Now().Add(-48*time.Hour), []string{"manual reporting"}, []string{"automate reviews"}, "neutral")
	f.completeCall(t, opp, time.Now(), []string{"forecast accuracy"}, []string{"hit the board number"}, "positive")

	// Synthesis silently loses the second call's pain point.
	f.client.synthesizeFn = func(context.Context, []entities.CallDigest) (string, error) {
		return synthesisResponse(
			[]string{"manual reporting"},
			[]string{"automate reviews", "hit the board number"},
			"low", []entities.RiskFactor{},
		), nil
	}

	job := f.jobs.ofKind(entities.PipelineJobKindConsolidate)[0]
	err := f.svc.processConsolidation(context.Background(), job)
	if !errors.Is(err, entities.ErrTransient) {
		t.Fatalf("dropped insight must fail coverage and retry, got %v", err)
	}

	got, _ := f.opps.GetByID(context.Background(), opp.ID)
	if got.LastConsolidatedAt != nil {
		t.Fatal("rejected synthesis must not be written")
	}
}

func TestConsolidation_MergedPhrasingCountsAsCovered(t *testing.T) {
	f := newFixture()
	opp := f.seedOpportunity()
	f.completeCall(t, opp, time.Now().Add(-48*time.Hour), []string{"reporting is fully manual today"}, []string{"automate reviews"}, "neutral")
	f.completeCall(t, opp, time.Now(), []string{"manual reporting wastes analyst time"}, []string{"automate reviews"}, "positive")

	// One consolidated entry represents both near-duplicate pain points.
	f.client.synthesizeFn = func(context.Context, []entities.CallDigest) (string, error) {
		return synthesisResponse(
			[]string{"manual reporting wastes time today"},
			[]string{"automate reviews"},
			"low", []entities.RiskFactor{},
		), nil
	}

	job := f.jobs.ofKind(entities.PipelineJobKindConsolidate)[0]
	if err := f.svc.processConsolidation(context.Background(), job); err != nil {
		t.Fatalf("merged near-duplicates must pass coverage: %v", err)
	}
}

func TestConsolidation_StaleWriterSkipsSilently(t *testing.T) {
	f := newFixture()
	opp := f.seedOpportunity()
	f.completeCall(t, opp, time.Now().Add(-48*time.Hour), []string{"manual reporting"}, []string{"automate reviews"}, "neutral")
	f.completeCall(t, opp, time.Now(), []string{"forecast accuracy"}, []string{"hit the board number"}, "positive")

	// A competing consolidation lands while this one is synthesizing.
	f.client.synthesizeFn = func(context.Context, []entities.CallDigest) (string, error) {
		now := time.Now()
		f.opps.mu.Lock()
		f.opps.items[opp.ID].LastConsolidatedAt = &now
		f.opps.items[opp.ID].ConsolidationCallCount = 2
		f.opps.items[opp.ID].SentimentTrend = "written by the winner"
		f.opps.mu.Unlock()
		return synthesisResponse(
			[]string{"manual reporting", "forecast accuracy"},
			[]string{"automate reviews", "hit the board number"},
			"low", []entities.RiskFactor{},
		), nil
	}

	job := f.jobs.ofKind(entities.PipelineJobKindConsolidate)[0]
	if err := f.svc.processConsolidation(context.Background(), job); err != nil {
		t.Fatalf("losing the optimistic race is not an error: %v", err)
	}

	got, _ := f.opps.GetByID(context.Background(), opp.ID)
	if got.SentimentTrend != "written by the winner" {
		t.Fatal("stale writer must not clobber the newer snapshot")
	}
	if f.publisher.ofKind(entities.NotificationKindSummaryUpdated) != 0 {
		t.Fatal("stale writer must not publish")
	}
}

func TestAggregateRiskLevel(t *testing.T) {
	digestWith := func(level entities.RiskLevel) entities.CallDigest {
		return entities.CallDigest{RiskAssessment: &entities.RiskAssessment{RiskLevel: level}}
	}

	cases := []struct {
		name    string
		digests []entities.CallDigest
		ra      entities.RiskAssessment
		want    entities.RiskLevel
	}{
		{
			name: "highest unresolved factor wins",
			ra: entities.RiskAssessment{RiskFactors: []entities.RiskFactor{
				{Severity: entities.RiskLevelMedium},
				{Severity: entities.RiskLevelHigh},
			}},
			want: entities.RiskLevelHigh,
		},
		{
			name: "resolved factors are ignored",
			ra: entities.RiskAssessment{RiskFactors: []entities.RiskFactor{
				{Severity: entities.RiskLevelCritical, Resolved: true},
				{Severity: entities.RiskLevelMedium},
			}},
			want: entities.RiskLevelMedium,
		},
		{
			name:    "recent call floors the level",
			digests: []entities.CallDigest{digestWith(entities.RiskLevelLow), digestWith(entities.RiskLevelHigh)},
			ra: entities.RiskAssessment{RiskFactors: []entities.RiskFactor{
				{Severity: entities.RiskLevelMedium},
			}},
			want: entities.RiskLevelHigh,
		},
		{
			name:    "older call risk does not floor",
			digests: []entities.CallDigest{digestWith(entities.RiskLevelCritical), digestWith(entities.RiskLevelLow)},
			ra: entities.RiskAssessment{RiskFactors: []entities.RiskFactor{
				{Severity: entities.RiskLevelMedium},
			}},
			want: entities.RiskLevelMedium,
		},
		{
			name: "no signals defaults low",
			want: entities.RiskLevelLow,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := aggregateRiskLevel(c.digests, c.ra); got != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestRepresentedIn(t *testing.T) {
	list := []string{"manual reporting wastes a full day every week"}

	if !representedIn("manual reporting", list) {
		t.Fatal("subset phrasing must count as represented")
	}
	if representedIn("competitor undercut our pricing", list) {
		t.Fatal("unrelated insight must not count as represented")
	}
	if !representedIn("", list) {
		t.Fatal("empty candidate is trivially represented")
	}
}
