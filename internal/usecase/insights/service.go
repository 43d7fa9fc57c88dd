package insights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"go.uber.org/zap"

	"github.com/salesight/salesight/internal/domain/entities"
	"github.com/salesight/salesight/internal/domain/repositories"
	"github.com/salesight/salesight/internal/usecase/notify"
	"github.com/salesight/salesight/pkg/config"
	"github.com/salesight/salesight/pkg/jobcontext"
)

// InsightClient is the stateless request/response contract to the external
// extraction, risk-scoring and synthesis services.
type InsightClient interface {
	ExtractCallInsights(ctx context.Context, rawText string) (string, error)
	AssessRisk(ctx context.Context, digest entities.CallDigest) (string, error)
	SynthesizeOpportunity(ctx context.Context, digests []entities.CallDigest) (string, error)
}

// Service orchestrates the call-insight pipeline: ingestion, extraction,
// risk analysis, consolidation and the worker pools that run them.
type Service struct {
	jobs          repositories.PipelineJobRepository
	transcripts   repositories.TranscriptRepository
	opportunities repositories.OpportunityRepository
	client        InsightClient
	parser        *Parser
	publisher     notify.Publisher
	cfg           *config.Config
	logger        *zap.Logger

	riskSemaphore       chan struct{} // Global ceiling on in-flight risk calls
	workerStopChan      chan struct{}
	workerWg            sync.WaitGroup
	isWorkerPoolRunning bool
	workerMutex         sync.Mutex
}

// NewService constructs the pipeline service
func NewService(
	jobs repositories.PipelineJobRepository,
	transcripts repositories.TranscriptRepository,
	opportunities repositories.OpportunityRepository,
	client InsightClient,
	publisher notify.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		jobs:           jobs,
		transcripts:    transcripts,
		opportunities:  opportunities,
		client:         client,
		parser:         NewParser(),
		publisher:      publisher,
		cfg:            cfg,
		logger:         logger,
		riskSemaphore:  make(chan struct{}, cfg.Worker.RiskConcurrency),
		workerStopChan: make(chan struct{}),
	}
}

// Ingest is the ingestion boundary: it creates the transcript record and
// enqueues its extraction job. The sole creator of transcripts.
func (s *Service) Ingest(ctx context.Context, opportunityID uuid.UUID, source entities.TranscriptSource, meetingDate time.Time, rawText string) (*entities.Transcript, error) {
	opp, err := s.opportunities.GetByID(ctx, opportunityID)
	if err != nil {
		return nil, entities.TransientErrorf("load opportunity: %v", err)
	}
	if opp == nil {
		return nil, entities.NotFoundErrorf("opportunity %s", opportunityID)
	}

	t := entities.NewTranscript(opportunityID, source, meetingDate, rawText)
	if err := s.transcripts.Create(ctx, t); err != nil {
		return nil, entities.TransientErrorf("create transcript: %v", err)
	}

	job := entities.NewExtractJob(t.ID, opportunityID)
	job.Metadata.TextLength = len(rawText)
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return nil, entities.TransientErrorf("enqueue extract job: %v", err)
	}

	s.logger.Info("transcript ingested",
		zap.String("transcript_id", t.ID.String()),
		zap.String("opportunity_id", opportunityID.String()),
		zap.String("source", string(source)),
		zap.Int("text_length", len(rawText)),
	)
	return t, nil
}

// processExtraction runs the extraction contract for one claimed job. It is
// safe under at-least-once delivery: re-running on an already-terminal
// transcript is a no-op with no downstream events.
func (s *Service) processExtraction(ctx context.Context, job *entities.PipelineJob) error {
	if job.TranscriptID == nil {
		return entities.ValidationErrorf("extract job %s has no transcript", job.ID)
	}

	transcript, err := s.transcripts.GetByID(ctx, *job.TranscriptID)
	if err != nil {
		return entities.TransientErrorf("load transcript: %v", err)
	}
	if transcript == nil {
		return entities.NotFoundErrorf("transcript %s", *job.TranscriptID)
	}

	if transcript.Status.IsTerminal() {
		s.logger.Info("transcript already terminal, skipping re-delivered job",
			zap.String("transcript_id", transcript.ID.String()),
			zap.String("status", string(transcript.Status)),
		)
		return nil
	}

	// Bounds check before any external call. Terminal, no retry, no events.
	if err := s.parser.ValidateTranscriptLength(transcript.RawText); err != nil {
		return err
	}

	ok, err := s.transcripts.MarkParsing(ctx, transcript.ID)
	if err != nil {
		return entities.TransientErrorf("mark parsing: %v", err)
	}
	if !ok {
		// Raced into a terminal status between the read above and now.
		return nil
	}

	content, err := s.client.ExtractCallInsights(ctx, transcript.RawText)
	if err != nil {
		return fmt.Errorf("extraction call: %w", err)
	}

	insights, err := s.parser.ParseCallInsights(content)
	if err != nil {
		return err
	}

	completed, err := s.transcripts.CompleteWithInsights(ctx, transcript.ID, insights, time.Now(), datatypes.JSON(extractJSON(content)))
	if err != nil {
		return entities.TransientErrorf("persist insights: %v", err)
	}
	if !completed {
		// Another delivery won the parsing -> completed transition; it owns
		// the fan-out.
		s.logger.Info("transcript completed concurrently, skipping fan-out",
			zap.String("transcript_id", transcript.ID.String()),
		)
		return nil
	}

	s.logger.Info("transcript extraction completed",
		zap.String("transcript_id", transcript.ID.String()),
		zap.String("opportunity_id", transcript.OpportunityID.String()),
		zap.Int("pain_points", len(insights.PainPoints)),
		zap.Int("goals", len(insights.Goals)),
	)

	s.fanOutAfterExtraction(ctx, transcript)
	return nil
}

// fanOutAfterExtraction emits the risk-analyze and consolidation-check
// events plus the owner notification. Runs exactly once per transcript: only
// the delivery that performed the parsing -> completed transition gets here.
// Fan-out problems are logged, never unwound: the transcript stays
// completed and every downstream consumer is idempotent.
func (s *Service) fanOutAfterExtraction(ctx context.Context, transcript *entities.Transcript) {
	riskJob := entities.NewRiskAnalyzeJob(transcript.ID, transcript.OpportunityID)
	if err := s.jobs.Enqueue(ctx, riskJob); err != nil {
		s.logger.Error("failed to enqueue risk-analyze job",
			zap.String("transcript_id", transcript.ID.String()),
			zap.Error(err),
		)
	}

	if err := s.CheckAndTrigger(ctx, transcript.OpportunityID); err != nil {
		s.logger.Error("consolidation check failed",
			zap.String("opportunity_id", transcript.OpportunityID.String()),
			zap.Error(err),
		)
	}

	opp, err := s.opportunities.GetByID(ctx, transcript.OpportunityID)
	if err != nil || opp == nil {
		s.logger.Warn("could not load opportunity owner for notification",
			zap.String("opportunity_id", transcript.OpportunityID.String()),
			zap.Error(err),
		)
		return
	}
	if err := s.publisher.InsightsReady(ctx, transcript, opp.OwnerID); err != nil {
		s.logger.Error("failed to publish insights-ready notification",
			zap.String("transcript_id", transcript.ID.String()),
			zap.Error(err),
		)
	}
}

// failExtraction records a terminal extraction failure on both the
// transcript and the job. MarkFailed is guarded, so a transcript that
// reached completed is never pulled back.
func (s *Service) failExtraction(ctx context.Context, job *entities.PipelineJob, jobErr error) {
	if job.TranscriptID != nil {
		if err := s.transcripts.MarkFailed(ctx, *job.TranscriptID, jobErr.Error()); err != nil {
			s.logger.Error("failed to mark transcript as failed",
				zap.String("transcript_id", job.TranscriptID.String()),
				zap.Error(err),
			)
		}
	}
	if err := s.jobs.MarkFailed(ctx, job.ID, jobErr.Error()); err != nil {
		s.logger.Error("failed to mark job as failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// StartWorkerPool starts the pipeline worker goroutines
func (s *Service) StartWorkerPool(ctx context.Context) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool already running")
	}

	s.isWorkerPoolRunning = true
	s.workerStopChan = make(chan struct{})

	s.logger.Info("starting pipeline worker pool",
		zap.Int("extract_workers", s.cfg.Worker.ExtractWorkers),
		zap.Int("risk_concurrency", s.cfg.Worker.RiskConcurrency),
	)

	for i := 0; i < s.cfg.Worker.ExtractWorkers; i++ {
		s.workerWg.Add(1)
		go s.extractWorker(ctx, i)
	}

	for i := 0; i < s.cfg.Worker.RiskConcurrency; i++ {
		s.workerWg.Add(1)
		go s.riskWorker(ctx, i)
	}

	s.workerWg.Add(1)
	go s.consolidateWorker(ctx, 0)

	s.workerWg.Add(1)
	go s.cleanupZombieJobs(ctx)

	s.workerWg.Add(1)
	go s.deadJobReporter(ctx)

	return nil
}

// StopWorkerPool gracefully stops all worker goroutines
func (s *Service) StopWorkerPool() error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if !s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool not running")
	}

	s.logger.Info("stopping pipeline worker pool")
	close(s.workerStopChan)
	s.workerWg.Wait()
	s.isWorkerPoolRunning = false
	s.logger.Info("pipeline worker pool stopped")

	return nil
}

// extractWorker polls for runnable extract jobs and processes them
func (s *Service) extractWorker(parentCtx context.Context, workerID int) {
	defer s.workerWg.Done()
	s.pollLoop(parentCtx, workerID, entities.PipelineJobKindExtract, s.runExtractJob)
}

// runExtractJob executes one claimed extraction job with retry semantics:
// transient errors retry inside the job timeout; terminal errors fail the
// transcript immediately.
func (s *Service) runExtractJob(parentCtx context.Context, workerID int, job *entities.PipelineJob) {
	jobCtx, cancel := jobcontext.JobBegin(parentCtx, job.ID, string(job.Kind), workerID, s.cfg.Worker.JobTimeout)
	defer cancel()

	err := jobcontext.Run(jobCtx, func(ctx context.Context) error {
		return s.processExtraction(ctx, job)
	})
	if err != nil {
		s.logger.Error("extract job failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		s.failExtraction(parentCtx, job, err)
		return
	}
	if err := s.jobs.MarkCompleted(parentCtx, job.ID); err != nil {
		s.logger.Error("failed to mark job completed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// pollLoop is the shared claim-then-run loop for one job kind. The claim is
// an atomic status update, so overlapping pollers never double-run a job.
func (s *Service) pollLoop(parentCtx context.Context, workerID int, kind entities.PipelineJobKind, run func(context.Context, int, *entities.PipelineJob)) {
	ticker := time.NewTicker(s.cfg.Worker.PollInterval)
	defer ticker.Stop()

	s.logger.Info("worker started",
		zap.Int("worker_id", workerID),
		zap.String("kind", string(kind)),
	)

	for {
		select {
		case <-s.workerStopChan:
			s.logger.Info("worker stopping",
				zap.Int("worker_id", workerID),
				zap.String("kind", string(kind)),
			)
			return

		case <-ticker.C:
			jobs, err := s.jobs.ListRunnable(parentCtx, kind, 5)
			if err != nil {
				s.logger.Error("failed to poll jobs",
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
				continue
			}

			for i := range jobs {
				job := jobs[i]

				claimed, err := s.jobs.Claim(parentCtx, job.ID)
				if err != nil {
					s.logger.Error("failed to claim job",
						zap.String("job_id", job.ID.String()),
						zap.Error(err),
					)
					continue
				}
				if !claimed {
					continue
				}

				s.logger.Info("worker claimed job",
					zap.Int("worker_id", workerID),
					zap.String("job_id", job.ID.String()),
					zap.String("kind", string(kind)),
					zap.Int("retry_count", job.RetryCount),
				)

				run(parentCtx, workerID, &job)
			}
		}
	}
}

// cleanupZombieJobs resets jobs stuck in running past the zombie deadline so
// a crashed worker can never strand a transcript in parsing forever. Every
// reset spends one retry; jobs out of budget fail instead of cycling.
func (s *Service) cleanupZombieJobs(parentCtx context.Context) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerStopChan:
			return

		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.Worker.ZombieAfter)
			n, err := s.jobs.ResetZombies(parentCtx, cutoff)
			if err != nil {
				s.logger.Error("zombie cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Warn("reset zombie jobs back to retrying",
					zap.Int64("count", n),
				)
			}
		}
	}
}

// deadJobReporter periodically surfaces permanently failed jobs for operators
func (s *Service) deadJobReporter(parentCtx context.Context) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerStopChan:
			return

		case <-ticker.C:
			jobs, err := s.jobs.ListDead(parentCtx, 50)
			if err != nil {
				continue
			}
			for _, job := range jobs {
				errorMsg := ""
				if job.LastError != nil {
					errorMsg = *job.LastError
				}
				s.logger.Warn("dead job",
					zap.String("job_id", job.ID.String()),
					zap.String("kind", string(job.Kind)),
					zap.String("opportunity_id", job.OpportunityID.String()),
					zap.Int("retry_count", job.RetryCount),
					zap.String("last_error", errorMsg),
				)
			}
		}
	}
}
