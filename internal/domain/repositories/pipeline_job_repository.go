package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/salesight/salesight/internal/domain/entities"
)

// PipelineJobRepository is the durable scheduler substrate: enqueue, claim,
// retry, and recover jobs. Claims are atomic updates so concurrent pollers
// never run the same job twice.
type PipelineJobRepository interface {
	Enqueue(ctx context.Context, job *entities.PipelineJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.PipelineJob, error)

	// ListRunnable returns pending/retrying jobs of one kind, oldest first.
	ListRunnable(ctx context.Context, kind entities.PipelineJobKind, limit int) ([]entities.PipelineJob, error)

	// Claim atomically moves a job from pending/retrying to running.
	// Returns false when another worker claimed it first.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// ResetZombies moves jobs stuck in running since before cutoff back to
	// retrying, consuming one retry per reset. Jobs with no budget left are
	// marked failed so a crash-looping worker cannot cycle a job forever.
	ResetZombies(ctx context.Context, cutoff time.Time) (int64, error)

	// ListDead returns terminally failed jobs for operator-facing
	// dead-letter logging.
	ListDead(ctx context.Context, limit int) ([]entities.PipelineJob, error)
}
