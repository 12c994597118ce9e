package models

import (
	"time"

	"github.com/google/uuid"
)

// Variant is the stock-keeping unit the inventory ledger tracks.
// AvailableQty is mutated only through the ledger's conditional updates;
// the CHECK constraint backstops the non-negativity invariant.
type Variant struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SKU            string    `gorm:"column:sku;not null;uniqueIndex"`
	AvailableQty   int       `gorm:"column:available_qty;not null;default:0;check:available_qty >= 0"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
