package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/salesight/salesight/internal/domain/entities"
)

// OpportunityRepository handles opportunity data operations
type OpportunityRepository struct {
	db *gorm.DB
}

// NewOpportunityRepository creates a new opportunity repository
func NewOpportunityRepository(db *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// GetByID retrieves an opportunity by ID
func (r *OpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Opportunity, error) {
	var opp entities.Opportunity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&opp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &opp, nil
}

// ReplaceConsolidatedView atomically applies a whole consolidated view. The
// WHERE clause compares (last_consolidated_at, consolidation_call_count)
// against the snapshot the worker started from, so a stale writer gets zero
// rows affected instead of clobbering a newer result.
func (r *OpportunityRepository) ReplaceConsolidatedView(ctx context.Context, id uuid.UUID, view *entities.ConsolidatedView, prevAt *time.Time, prevCount int) (bool, error) {
	if view == nil {
		return false, errors.New("view cannot be nil")
	}

	query := r.db.WithContext(ctx).
		Model(&entities.Opportunity{}).
		Where("id = ? AND consolidation_call_count = ?", id, prevCount)
	if prevAt == nil {
		query = query.Where("last_consolidated_at IS NULL")
	} else {
		query = query.Where("last_consolidated_at = ?", *prevAt)
	}

	ra := view.RiskAssessment
	at := view.ConsolidatedAt
	result := query.
		Select("consolidated_pain_points", "consolidated_goals",
			"consolidated_why_and_why_now", "consolidated_metrics",
			"consolidated_risk_assessment", "sentiment_trend",
			"last_consolidated_at", "consolidation_call_count", "updated_at").
		Updates(&entities.Opportunity{
			ConsolidatedPainPoints:     view.PainPoints,
			ConsolidatedGoals:          view.Goals,
			ConsolidatedWhyAndWhyNow:   view.WhyAndWhyNow,
			ConsolidatedMetrics:        view.Metrics,
			ConsolidatedRiskAssessment: &ra,
			SentimentTrend:             view.SentimentTrend,
			LastConsolidatedAt:         &at,
			ConsolidationCallCount:     view.CallCount,
			UpdatedAt:                  time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
