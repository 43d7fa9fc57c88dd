package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/salesight/salesight/internal/domain/entities"
)

// PipelineJobRepository handles pipeline job data operations
type PipelineJobRepository struct {
	db *gorm.DB
}

// NewPipelineJobRepository creates a new pipeline job repository
func NewPipelineJobRepository(db *gorm.DB) *PipelineJobRepository {
	return &PipelineJobRepository{db: db}
}

// Enqueue creates a new pipeline job
func (r *PipelineJobRepository) Enqueue(ctx context.Context, job *entities.PipelineJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a pipeline job by ID
func (r *PipelineJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.PipelineJob, error) {
	var job entities.PipelineJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// ListRunnable retrieves pending/retrying jobs of one kind, oldest first
func (r *PipelineJobRepository) ListRunnable(ctx context.Context, kind entities.PipelineJobKind, limit int) ([]entities.PipelineJob, error) {
	var jobs []entities.PipelineJob
	if limit == 0 {
		limit = 10
	}
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND status IN ?", kind, []entities.PipelineJobStatus{
			entities.PipelineJobStatusPending,
			entities.PipelineJobStatusRetrying,
		}).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Claim atomically moves a job to running. Only one worker will succeed if
// multiple workers see the same job.
func (r *PipelineJobRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entities.PipelineJob{}).
		Where("id = ? AND status IN ?", id, []entities.PipelineJobStatus{
			entities.PipelineJobStatusPending,
			entities.PipelineJobStatusRetrying,
		}).
		Updates(map[string]interface{}{
			"status":     entities.PipelineJobStatusRunning,
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkCompleted marks a job as completed
func (r *PipelineJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entities.PipelineJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       entities.PipelineJobStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

// MarkFailed marks a job as terminally failed with the error preserved
func (r *PipelineJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entities.PipelineJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       entities.PipelineJobStatusFailed,
			"last_error":   errMsg,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

// ResetZombies recovers jobs stuck in running (crashed worker). Each reset
// consumes retry budget; a job whose worker keeps dying is failed once the
// budget runs out instead of cycling forever.
func (r *PipelineJobRepository) ResetZombies(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now()
	if err := r.db.WithContext(ctx).
		Model(&entities.PipelineJob{}).
		Where("status = ? AND updated_at < ? AND retry_count >= max_retries - 1",
			entities.PipelineJobStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":       entities.PipelineJobStatusFailed,
			"last_error":   "worker died while job was running",
			"completed_at": now,
			"updated_at":   now,
		}).Error; err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).
		Model(&entities.PipelineJob{}).
		Where("status = ? AND updated_at < ?", entities.PipelineJobStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"status":      entities.PipelineJobStatusRetrying,
			"updated_at":  now,
		})
	return result.RowsAffected, result.Error
}

// ListDead retrieves terminally failed jobs for operator review
func (r *PipelineJobRepository) ListDead(ctx context.Context, limit int) ([]entities.PipelineJob, error) {
	var jobs []entities.PipelineJob
	if limit == 0 {
		limit = 50
	}
	if err := r.db.WithContext(ctx).
		Where("status = ?", entities.PipelineJobStatusFailed).
		Order("updated_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
