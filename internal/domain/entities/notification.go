package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKind distinguishes the two pipeline fan-out events.
type NotificationKind string

const (
	NotificationKindInsightsReady  NotificationKind = "insights_ready"  // Extraction completed for one call
	NotificationKindSummaryUpdated NotificationKind = "summary_updated" // Consolidated view recomputed
)

// Notification is the idempotent fan-out artifact delivered to the
// opportunity owner. The unique dedup key guarantees at-most-once creation
// under at-least-once job delivery.
type Notification struct {
	ID            uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OpportunityID uuid.UUID        `json:"opportunity_id" gorm:"type:uuid;not null;index"`
	UserID        uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Kind          NotificationKind `json:"kind" gorm:"type:varchar(50);not null"`
	Title         string           `json:"title" gorm:"type:varchar(255);not null"`
	Body          string           `json:"body,omitempty" gorm:"type:text"`
	DedupKey      string           `json:"dedup_key" gorm:"type:varchar(255);not null;uniqueIndex"`
	IsRead        bool             `json:"is_read" gorm:"not null;default:false"`
	CreatedAt     time.Time        `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}

// InsightsReadyDedupKey is stable per transcript: re-delivered extraction
// jobs compute the same key.
func InsightsReadyDedupKey(transcriptID uuid.UUID) string {
	return fmt.Sprintf("insights:%s", transcriptID)
}

// SummaryUpdatedDedupKey is stable per consolidation snapshot. Nanosecond
// precision keeps back-to-back snapshots of one opportunity distinct.
func SummaryUpdatedDedupKey(opportunityID uuid.UUID, consolidatedAt time.Time) string {
	return fmt.Sprintf("summary:%s:%d", opportunityID, consolidatedAt.UnixNano())
}
