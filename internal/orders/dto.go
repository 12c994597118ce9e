package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/pkg/enums"
)

// OrderSummary exposes the aggregated fields returned in the admin list.
type OrderSummary struct {
	ID             uuid.UUID         `json:"id"`
	CreatedAt      time.Time         `json:"created_at"`
	Status         enums.OrderStatus `json:"status"`
	TotalCents     int               `json:"total_cents"`
	DiscountCents  int               `json:"discount_cents"`
	TotalItems     int               `json:"total_items"`
	CustomerName   string            `json:"customer_name"`
	CustomerEmail  string            `json:"customer_email"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
