package payloads

import (
	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals that a completion webhook produced a pending order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	CartID        uuid.UUID `json:"cart_id"`
	TotalCents    int       `json:"total_cents"`
	CustomerEmail string    `json:"customer_email"`
}

// OrderPaidEvent is emitted once capture succeeds and stock is committed.
type OrderPaidEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	PaymentRef string    `json:"payment_ref"`
	TotalCents int       `json:"total_cents"`
}

// OrderStatusChangedEvent covers the fulfilment transitions.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	Restocked      bool              `json:"restocked,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}
