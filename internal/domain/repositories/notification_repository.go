package repositories

import (
	"context"

	"github.com/salesight/salesight/internal/domain/entities"
)

// NotificationRepository persists fan-out notifications. The dedup key has a
// unique index, so CreateIfAbsent is safe under at-least-once delivery.
type NotificationRepository interface {
	// CreateIfAbsent inserts the notification unless a record with the same
	// dedup key already exists. Returns true only when a row was created.
	CreateIfAbsent(ctx context.Context, n *entities.Notification) (bool, error)
}
