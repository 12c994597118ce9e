package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem holds a mutable quantity per variant while the cart is active.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
