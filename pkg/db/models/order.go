package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/pkg/enums"
	"github.com/ivanberrios/storefront-backend/pkg/types"
)

// Order is the aggregate root of the checkout lifecycle. The customer
// snapshot and line items are frozen at creation time; later cart or profile
// edits never alter an existing order. Orders are never physically deleted.
type Order struct {
	ID     uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID *uuid.UUID `gorm:"column:cart_id;type:uuid"`
	UserID *uuid.UUID `gorm:"column:user_id;type:uuid"`

	Status     enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency   enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	TotalCents int               `gorm:"column:total_cents;not null"`

	CustomerName  string         `gorm:"column:customer_name;not null"`
	CustomerEmail string         `gorm:"column:customer_email;not null"`
	CustomerPhone *string        `gorm:"column:customer_phone"`
	Address       *types.Address `gorm:"column:address;type:jsonb;serializer:json"`

	// PaymentRef is the provider-side authorization id. The unique index is
	// the database backstop against duplicate webhook deliveries creating
	// duplicate orders.
	PaymentRef     *string `gorm:"column:payment_ref;uniqueIndex"`
	TrackingNumber *string `gorm:"column:tracking_number"`

	CouponCode    *string `gorm:"column:coupon_code"`
	DiscountCents int     `gorm:"column:discount_cents;not null;default:0"`

	PaidAt      *time.Time `gorm:"column:paid_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`

	// StockCommittedAt and RestockedAt are once-per-order guards: stock is
	// decremented exactly once at capture and incremented at most once on
	// cancel/refund, regardless of retries.
	StockCommittedAt *time.Time `gorm:"column:stock_committed_at"`
	RestockedAt      *time.Time `gorm:"column:restocked_at"`

	Items     []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}
