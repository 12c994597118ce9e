package models

import (
	"time"
)

// WebhookEvent is the durable ledger of processed provider event ids,
// behind the redis fast-path guard.
type WebhookEvent struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;autoCreateTime"`
}
