package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/salesight/salesight/internal/domain/entities"
)

// TranscriptRepository handles transcript data operations
type TranscriptRepository struct {
	db *gorm.DB
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(db *gorm.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Create inserts a new transcript record
func (r *TranscriptRepository) Create(ctx context.Context, t *entities.Transcript) error {
	if t == nil {
		return errors.New("transcript cannot be nil")
	}
	return r.db.WithContext(ctx).Create(t).Error
}

// GetByID retrieves a transcript by ID
func (r *TranscriptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transcript, error) {
	var t entities.Transcript
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// MarkParsing moves a transcript from pending to parsing. The WHERE clause
// also accepts parsing so a retried job is idempotent; terminal statuses are
// left untouched and reported via the bool.
func (r *TranscriptRepository) MarkParsing(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.Transcript{}).
		Where("id = ? AND status IN ?", id, []entities.TranscriptStatus{
			entities.TranscriptStatusPending,
			entities.TranscriptStatusParsing,
		}).
		Updates(map[string]interface{}{
			"status":     entities.TranscriptStatusParsing,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CompleteWithInsights persists extracted fields and flips parsing ->
// completed in one guarded update. Exactly one caller per transcript sees
// true, which is what makes the downstream fan-out exactly-once.
func (r *TranscriptRepository) CompleteWithInsights(ctx context.Context, id uuid.UUID, insights *entities.CallInsights, parsedAt time.Time, raw datatypes.JSON) (bool, error) {
	if insights == nil {
		return false, errors.New("insights cannot be nil")
	}
	t := entities.Transcript{
		Status:      entities.TranscriptStatusCompleted,
		ParsedAt:    &parsedAt,
		RawResponse: raw,
		UpdatedAt:   time.Now(),
	}
	t.ApplyInsights(insights)
	// Struct-based update so the jsonb serializer applies to insight fields.
	result := r.db.WithContext(ctx).
		Model(&entities.Transcript{}).
		Where("id = ? AND status = ?", id, entities.TranscriptStatusParsing).
		Select("status", "parsed_at", "pain_points", "goals", "next_steps",
			"why_and_why_now", "quantifiable_metrics", "key_quotes", "objections",
			"competition_mentions", "decision_process", "call_sentiment",
			"raw_response", "updated_at").
		Updates(&t)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkFailed records a terminal failure. Completed transcripts are never
// moved back: the status machine is monotonic.
func (r *TranscriptRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Transcript{}).
		Where("id = ? AND status IN ?", id, []entities.TranscriptStatus{
			entities.TranscriptStatusPending,
			entities.TranscriptStatusParsing,
		}).
		Updates(map[string]interface{}{
			"status":     entities.TranscriptStatusFailed,
			"last_error": errMsg,
			"updated_at": time.Now(),
		}).Error
}

// SetRiskAssessment attaches the risk pass to a completed transcript
func (r *TranscriptRepository) SetRiskAssessment(ctx context.Context, id uuid.UUID, ra *entities.RiskAssessment) error {
	if ra == nil {
		return errors.New("risk assessment cannot be nil")
	}
	return r.db.WithContext(ctx).
		Model(&entities.Transcript{}).
		Where("id = ? AND status = ?", id, entities.TranscriptStatusCompleted).
		Select("risk_assessment", "updated_at").
		Updates(&entities.Transcript{RiskAssessment: ra, UpdatedAt: time.Now()}).Error
}

// ListCompletedByOpportunity returns completed transcripts in meeting order
func (r *TranscriptRepository) ListCompletedByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]entities.Transcript, error) {
	var transcripts []entities.Transcript
	if err := r.db.WithContext(ctx).
		Where("opportunity_id = ? AND status = ?", opportunityID, entities.TranscriptStatusCompleted).
		Order("meeting_date ASC").
		Find(&transcripts).Error; err != nil {
		return nil, err
	}
	return transcripts, nil
}

// CountByStatus counts an opportunity's transcripts in one status
func (r *TranscriptRepository) CountByStatus(ctx context.Context, opportunityID uuid.UUID, status entities.TranscriptStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Transcript{}).
		Where("opportunity_id = ? AND status = ?", opportunityID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
