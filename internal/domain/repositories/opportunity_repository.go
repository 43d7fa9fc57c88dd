package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/salesight/salesight/internal/domain/entities"
)

// OpportunityRepository is the narrow store surface the pipeline needs for
// opportunities.
type OpportunityRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Opportunity, error)

	// ReplaceConsolidatedView applies a whole new consolidated view guarded
	// by the optimistic version (prevAt, prevCount) read at job start.
	// Returns false when the guard fails because a newer consolidation
	// already landed; the caller skips silently in that case. The previous
	// good snapshot is never partially overwritten.
	ReplaceConsolidatedView(ctx context.Context, id uuid.UUID, view *entities.ConsolidatedView, prevAt *time.Time, prevCount int) (bool, error)
}
