package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/pkg/enums"
	"github.com/ivanberrios/storefront-backend/pkg/types"
)

// Cart is the ephemeral pre-order container scoped to a browser session.
// Once an order references a cart its status flips to converted and the
// items are never read again for inventory purposes.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID string           `gorm:"column:session_id;not null;index"`
	UserID    *uuid.UUID       `gorm:"column:user_id;type:uuid"`
	Status    enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`

	// Customer contact collected when the checkout session is created. Copied
	// onto the order at webhook time, not referenced afterwards.
	CustomerName  *string        `gorm:"column:customer_name"`
	CustomerEmail *string        `gorm:"column:customer_email"`
	CustomerPhone *string        `gorm:"column:customer_phone"`
	Address       *types.Address `gorm:"column:address;type:jsonb;serializer:json"`

	CouponCode    *string `gorm:"column:coupon_code"`
	DiscountCents int     `gorm:"column:discount_cents;not null;default:0"`

	ConvertedAt *time.Time `gorm:"column:converted_at"`
	Items       []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
