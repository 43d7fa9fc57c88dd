package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesight/salesight/internal/domain/entities"
	"github.com/salesight/salesight/pkg/jobcontext"
)

// ConsolidationMinCalls is the debounce gate: single-call opportunities
// never attempt consolidation.
const ConsolidationMinCalls = 2

// CheckAndTrigger decides whether an opportunity's rolling summary should be
// recomputed. Fired only from extraction completion, so a risk-only update
// never re-triggers. Every new completed call past the threshold re-triggers.
func (s *Service) CheckAndTrigger(ctx context.Context, opportunityID uuid.UUID) error {
	count, err := s.transcripts.CountByStatus(ctx, opportunityID, entities.TranscriptStatusCompleted)
	if err != nil {
		return entities.TransientErrorf("count completed transcripts: %v", err)
	}

	if count < ConsolidationMinCalls {
		s.logger.Debug("consolidation gate: not enough completed calls",
			zap.String("opportunity_id", opportunityID.String()),
			zap.Int64("completed_calls", count),
		)
		return nil
	}

	job := entities.NewConsolidateJob(opportunityID)
	job.Metadata.CallCount = int(count)
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return entities.TransientErrorf("enqueue consolidate job: %v", err)
	}

	s.logger.Info("consolidation triggered",
		zap.String("opportunity_id", opportunityID.String()),
		zap.Int64("completed_calls", count),
	)
	return nil
}

// consolidateWorker polls for consolidate jobs. Same-opportunity writers are
// serialized by the optimistic guard at write time, not by a lock.
func (s *Service) consolidateWorker(parentCtx context.Context, workerID int) {
	defer s.workerWg.Done()
	s.pollLoop(parentCtx, workerID, entities.PipelineJobKindConsolidate, s.runConsolidateJob)
}

func (s *Service) runConsolidateJob(parentCtx context.Context, workerID int, job *entities.PipelineJob) {
	jobCtx, cancel := jobcontext.JobBegin(parentCtx, job.ID, string(job.Kind), workerID, s.cfg.Worker.JobTimeout)
	defer cancel()

	err := jobcontext.Run(jobCtx, func(ctx context.Context) error {
		return s.processConsolidation(ctx, job)
	})
	if err != nil {
		s.logger.Error("consolidate job failed",
			zap.String("job_id", job.ID.String()),
			zap.String("opportunity_id", job.OpportunityID.String()),
			zap.Error(err),
		)
		if markErr := s.jobs.MarkFailed(parentCtx, job.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark consolidate job as failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(markErr),
			)
		}
		return
	}
	if err := s.jobs.MarkCompleted(parentCtx, job.ID); err != nil {
		s.logger.Error("failed to mark consolidate job completed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// processConsolidation merges all completed calls of one opportunity into a
// single consolidated view. A malformed synthesis result fails the job with
// zero writes: the previous good snapshot survives untouched.
func (s *Service) processConsolidation(ctx context.Context, job *entities.PipelineJob) error {
	opp, err := s.opportunities.GetByID(ctx, job.OpportunityID)
	if err != nil {
		return entities.TransientErrorf("load opportunity: %v", err)
	}
	if opp == nil {
		return entities.NotFoundErrorf("opportunity %s", job.OpportunityID)
	}

	// Optimistic version of the snapshot this run starts from.
	prevAt := opp.LastConsolidatedAt
	prevCount := opp.ConsolidationCallCount

	transcripts, err := s.transcripts.ListCompletedByOpportunity(ctx, job.OpportunityID)
	if err != nil {
		return entities.TransientErrorf("list completed transcripts: %v", err)
	}
	if len(transcripts) < ConsolidationMinCalls {
		s.logger.Info("consolidation skipped: below call threshold",
			zap.String("opportunity_id", job.OpportunityID.String()),
			zap.Int("completed_calls", len(transcripts)),
		)
		return nil
	}

	digests := make([]entities.CallDigest, 0, len(transcripts))
	for i := range transcripts {
		digests = append(digests, transcripts[i].Digest())
	}

	content, err := s.client.SynthesizeOpportunity(ctx, digests)
	if err != nil {
		return fmt.Errorf("synthesis call: %w", err)
	}

	// Unlike extraction, a rejected synthesis result is retried: the
	// synthesis output is nondeterministic, so the next attempt may produce
	// a well-formed merge.
	consolidated, err := s.parser.ParseConsolidatedInsights(content)
	if err != nil {
		return entities.TransientErrorf("synthesis result rejected: %v", err)
	}

	// No call's insight may be dropped: everything must survive in the
	// consolidated lists, directly or merged into a near-duplicate.
	if err := verifyCoverage(digests, consolidated); err != nil {
		return entities.TransientErrorf("synthesis result rejected: %v", err)
	}

	// The risk level is deterministic policy, not model output.
	consolidated.RiskAssessment.RiskLevel = aggregateRiskLevel(digests, consolidated.RiskAssessment)

	view := &entities.ConsolidatedView{
		PainPoints:     consolidated.PainPoints,
		Goals:          consolidated.Goals,
		WhyAndWhyNow:   consolidated.WhyAndWhyNow,
		Metrics:        consolidated.Metrics,
		RiskAssessment: consolidated.RiskAssessment,
		SentimentTrend: consolidated.SentimentTrend,
		ConsolidatedAt: time.Now(),
		CallCount:      len(transcripts),
	}

	applied, err := s.opportunities.ReplaceConsolidatedView(ctx, opp.ID, view, prevAt, prevCount)
	if err != nil {
		return entities.TransientErrorf("replace consolidated view: %v", err)
	}
	if !applied {
		// Lost the optimistic race: a newer consolidation already landed.
		// Not an error.
		s.logger.Info("consolidation write skipped, newer snapshot already landed",
			zap.String("opportunity_id", opp.ID.String()),
			zap.Int("call_count", view.CallCount),
		)
		return nil
	}

	s.logger.Info("consolidated view updated",
		zap.String("opportunity_id", opp.ID.String()),
		zap.Int("call_count", view.CallCount),
		zap.String("risk_level", string(view.RiskAssessment.RiskLevel)),
	)

	if err := s.publisher.SummaryUpdated(ctx, opp.ID, opp.OwnerID, view.ConsolidatedAt, view.CallCount); err != nil {
		s.logger.Error("failed to publish summary-updated notification",
			zap.String("opportunity_id", opp.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// aggregateRiskLevel applies the deterministic aggregation policy: the
// highest severity among unresolved factors, floored by the most recent
// call's own risk level so late-breaking signals dominate.
func aggregateRiskLevel(digests []entities.CallDigest, ra entities.RiskAssessment) entities.RiskLevel {
	level := entities.RiskLevelLow

	for _, f := range ra.RiskFactors {
		if f.Resolved {
			continue
		}
		if f.Severity.Rank() > level.Rank() {
			level = f.Severity
		}
	}

	// Most recent call weighs heaviest.
	if len(digests) > 0 {
		last := digests[len(digests)-1]
		if last.RiskAssessment != nil && last.RiskAssessment.RiskLevel.Rank() > level.Rank() {
			level = last.RiskAssessment.RiskLevel
		}
	}

	return level
}

// verifyCoverage checks that every per-call pain point and goal is
// represented in the consolidated lists, directly or as a near-duplicate.
func verifyCoverage(digests []entities.CallDigest, consolidated *entities.ConsolidatedInsights) error {
	for _, d := range digests {
		for _, p := range d.PainPoints {
			if !representedIn(p, consolidated.PainPoints) {
				return entities.ValidationErrorf("synthesis dropped pain point %q from call %s", p, d.CallID)
			}
		}
		for _, g := range d.Goals {
			if !representedIn(g, consolidated.Goals) {
				return entities.ValidationErrorf("synthesis dropped goal %q from call %s", g, d.CallID)
			}
		}
	}
	return nil
}

// representedIn reports whether the candidate insight is covered by any
// entry of the consolidated list, matching by meaning rather than exact
// string: token overlap against the candidate's own tokens.
func representedIn(candidate string, list []string) bool {
	ct := tokenSet(candidate)
	if len(ct) == 0 {
		return true
	}
	for _, item := range list {
		it := tokenSet(item)
		overlap := 0
		for tok := range ct {
			if it[tok] {
				overlap++
			}
		}
		// Half the candidate's meaningful tokens appearing in one
		// consolidated entry counts as represented.
		if overlap*2 >= len(ct) {
			return true
		}
	}
	return false
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "our": true,
	"that": true, "the": true, "their": true, "they": true, "this": true,
	"to": true, "we": true, "with": true,
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if w == "" || stopwords[w] {
			continue
		}
		set[w] = true
	}
	return set
}
