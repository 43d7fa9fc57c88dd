package insights

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/salesight/salesight/internal/domain/entities"
	"github.com/salesight/salesight/pkg/jobcontext"
)

// riskWorker polls for risk-analyze jobs. The shared semaphore keeps the
// number of in-flight risk-scoring calls under the global ceiling no matter
// how many pollers run.
func (s *Service) riskWorker(parentCtx context.Context, workerID int) {
	defer s.workerWg.Done()
	s.pollLoop(parentCtx, workerID, entities.PipelineJobKindRiskAnalyze, s.runRiskJob)
}

func (s *Service) runRiskJob(parentCtx context.Context, workerID int, job *entities.PipelineJob) {
	jobCtx, cancel := jobcontext.JobBegin(parentCtx, job.ID, string(job.Kind), workerID, s.cfg.Worker.JobTimeout)
	defer cancel()

	err := jobcontext.Run(jobCtx, func(ctx context.Context) error {
		return s.processRiskAnalysis(ctx, job)
	})
	if err != nil {
		// Risk failure is surfaced on its own; it never reverts the
		// transcript's primary status away from completed.
		s.logger.Error("risk-analyze job failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		if markErr := s.jobs.MarkFailed(parentCtx, job.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark risk job as failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(markErr),
			)
		}
		return
	}
	if err := s.jobs.MarkCompleted(parentCtx, job.ID); err != nil {
		s.logger.Error("failed to mark risk job completed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// processRiskAnalysis runs the secondary risk pass over one completed
// transcript. Re-delivery overwrites the same assessment, which is harmless.
func (s *Service) processRiskAnalysis(ctx context.Context, job *entities.PipelineJob) error {
	if job.TranscriptID == nil {
		return entities.ValidationErrorf("risk job %s has no transcript", job.ID)
	}

	transcript, err := s.transcripts.GetByID(ctx, *job.TranscriptID)
	if err != nil {
		return entities.TransientErrorf("load transcript: %v", err)
	}
	if transcript == nil {
		return entities.NotFoundErrorf("transcript %s", *job.TranscriptID)
	}
	if transcript.Status != entities.TranscriptStatusCompleted {
		return entities.ValidationErrorf("transcript %s is %s, risk analysis requires completed", transcript.ID, transcript.Status)
	}

	// Throttle against the external rate limit.
	select {
	case s.riskSemaphore <- struct{}{}:
	case <-ctx.Done():
		return entities.TransientErrorf("cancelled waiting for risk slot: %v", ctx.Err())
	}
	content, err := s.client.AssessRisk(ctx, transcript.Digest())
	<-s.riskSemaphore
	if err != nil {
		return fmt.Errorf("risk call: %w", err)
	}

	assessment, err := s.parser.ParseRiskAssessment(content)
	if err != nil {
		return err
	}

	if err := s.transcripts.SetRiskAssessment(ctx, transcript.ID, assessment); err != nil {
		return entities.TransientErrorf("persist risk assessment: %v", err)
	}

	s.logger.Info("risk assessment persisted",
		zap.String("transcript_id", transcript.ID.String()),
		zap.String("risk_level", string(assessment.RiskLevel)),
		zap.Int("risk_factors", len(assessment.RiskFactors)),
	)
	return nil
}
