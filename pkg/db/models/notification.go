package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/pkg/enums"
)

// Notification stores in-app notification payloads materialized from
// order lifecycle events.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID              `gorm:"type:uuid;not null;index"`
	Type      enums.NotificationType `gorm:"type:text;not null"`
	Title     string                 `gorm:"type:text;not null"`
	Message   string                 `gorm:"type:text;not null"`
	ReadAt    *time.Time             `gorm:"type:timestamptz"`
	CreatedAt time.Time              `gorm:"type:timestamptz;default:now()"`
}
