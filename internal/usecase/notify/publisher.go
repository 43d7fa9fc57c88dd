package notify

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesight/salesight/internal/domain/entities"
	"github.com/salesight/salesight/internal/domain/repositories"
)

// Broadcaster is the best-effort realtime channel scoped to one user. No
// delivery guarantee is required of it.
type Broadcaster interface {
	Broadcast(ctx context.Context, userID uuid.UUID, payload interface{}) error
}

// Publisher records and broadcasts pipeline fan-out events. Record creation
// is the durable side effect (retried); the broadcast is fire-and-forget.
type Publisher interface {
	InsightsReady(ctx context.Context, transcript *entities.Transcript, ownerID uuid.UUID) error
	SummaryUpdated(ctx context.Context, opportunityID, ownerID uuid.UUID, consolidatedAt time.Time, callCount int) error
}

type publisher struct {
	notifications repositories.NotificationRepository
	broadcaster   Broadcaster
	logger        *zap.Logger
}

// NewPublisher constructs the notification publisher
func NewPublisher(notifications repositories.NotificationRepository, broadcaster Broadcaster, logger *zap.Logger) Publisher {
	return &publisher{
		notifications: notifications,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

// InsightsReady publishes the per-call extraction-complete event. The dedup
// key is stable per transcript, so a re-delivered job creates nothing.
func (p *publisher) InsightsReady(ctx context.Context, transcript *entities.Transcript, ownerID uuid.UUID) error {
	n := &entities.Notification{
		ID:            uuid.New(),
		OpportunityID: transcript.OpportunityID,
		UserID:        ownerID,
		Kind:          entities.NotificationKindInsightsReady,
		Title:         "Call insights ready",
		Body:          fmt.Sprintf("Insights extracted from the %s call on %s", transcript.SourceKind, transcript.MeetingDate.Format("Jan 2, 2006")),
		DedupKey:      entities.InsightsReadyDedupKey(transcript.ID),
	}
	return p.publish(ctx, n)
}

// SummaryUpdated publishes the consolidation-complete event, keyed by the
// snapshot time so each consolidation notifies exactly once.
func (p *publisher) SummaryUpdated(ctx context.Context, opportunityID, ownerID uuid.UUID, consolidatedAt time.Time, callCount int) error {
	n := &entities.Notification{
		ID:            uuid.New(),
		OpportunityID: opportunityID,
		UserID:        ownerID,
		Kind:          entities.NotificationKindSummaryUpdated,
		Title:         "Opportunity summary updated",
		Body:          fmt.Sprintf("Rolling summary recomputed across %d completed calls", callCount),
		DedupKey:      entities.SummaryUpdatedDedupKey(opportunityID, consolidatedAt),
	}
	return p.publish(ctx, n)
}

func (p *publisher) publish(ctx context.Context, n *entities.Notification) error {
	var created bool
	insertFn := func() error {
		var err error
		created, err = p.notifications.CreateIfAbsent(ctx, n)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second

	if err := backoff.Retry(insertFn, backoff.WithContext(bo, ctx)); err != nil {
		return entities.TransientErrorf("create notification record: %v", err)
	}

	if !created {
		p.logger.Debug("notification already exists, skipping broadcast",
			zap.String("dedup_key", n.DedupKey),
		)
		return nil
	}

	// Best effort: a broadcast failure never fails the job.
	if p.broadcaster != nil {
		if err := p.broadcaster.Broadcast(ctx, n.UserID, n); err != nil {
			p.logger.Warn("notification broadcast failed",
				zap.String("dedup_key", n.DedupKey),
				zap.String("user_id", n.UserID.String()),
				zap.Error(err),
			)
		}
	}

	p.logger.Info("notification published",
		zap.String("kind", string(n.Kind)),
		zap.String("opportunity_id", n.OpportunityID.String()),
		zap.String("dedup_key", n.DedupKey),
	)
	return nil
}
