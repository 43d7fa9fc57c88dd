package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/salesight/salesight/internal/domain/entities"
)

// NotificationRepository handles notification data operations
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateIfAbsent inserts the notification unless the dedup key already
// exists. ON CONFLICT DO NOTHING keeps this safe under concurrent
// re-deliveries; RowsAffected tells the caller whether a row was created.
func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, n *entities.Notification) (bool, error) {
	if n == nil {
		return false, errors.New("notification cannot be nil")
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(n)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
