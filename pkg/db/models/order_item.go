package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is one frozen line of an order's snapshot. All inventory
// compensation is computed from these rows, never from the originating cart.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID      uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	SKU            string    `gorm:"column:sku;not null"`
	Name           string    `gorm:"column:name;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
