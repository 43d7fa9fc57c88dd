package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/salesight/salesight/internal/domain/entities"
)

// TranscriptRepository is the narrow store surface the pipeline needs for
// transcripts. Guarded mutations return whether a row actually transitioned,
// so workers can tell a first run from a re-delivery.
type TranscriptRepository interface {
	Create(ctx context.Context, t *entities.Transcript) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transcript, error)

	// MarkParsing moves pending -> parsing. Returns false when the
	// transcript is already terminal (re-delivered job).
	MarkParsing(ctx context.Context, id uuid.UUID) (bool, error)

	// CompleteWithInsights persists extracted fields, parsed_at and
	// status=completed in one guarded update (only from parsing). Returns
	// true exactly once per transcript, which drives the downstream fan-out.
	CompleteWithInsights(ctx context.Context, id uuid.UUID, insights *entities.CallInsights, parsedAt time.Time, raw datatypes.JSON) (bool, error)

	// MarkFailed records a terminal failure with the operator-facing error.
	// A no-op on transcripts that already reached completed.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// SetRiskAssessment attaches the secondary risk pass. Only applies to
	// completed transcripts and never touches status.
	SetRiskAssessment(ctx context.Context, id uuid.UUID, ra *entities.RiskAssessment) error

	// ListCompletedByOpportunity returns completed transcripts ordered by
	// meeting_date ascending (consolidation needs temporal order).
	ListCompletedByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]entities.Transcript, error)

	// CountByStatus counts an opportunity's transcripts in a given status.
	CountByStatus(ctx context.Context, opportunityID uuid.UUID, status entities.TranscriptStatus) (int64, error)
}
