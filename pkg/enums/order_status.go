package enums

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"

	// OrderStatusConfirmed is a legacy alias kept for rows written before
	// the paid/processing split. Treated as paid everywhere.
	OrderStatusConfirmed OrderStatus = "confirmed"
)

// Normalize folds legacy aliases into their current equivalent.
func (s OrderStatus) Normalize() OrderStatus {
	if s == OrderStatusConfirmed {
		return OrderStatusPaid
	}
	return s
}

// IsValid reports whether the value is a known status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
		OrderStatusRefunded, OrderStatusConfirmed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s.Normalize() {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether target is an allowed successor of s.
// The switch is exhaustive over the normalized statuses so adding a status
// forces this table to be revisited.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	target = target.Normalize()
	switch s.Normalize() {
	case OrderStatusPending:
		return target == OrderStatusPaid || target == OrderStatusCancelled
	case OrderStatusPaid:
		return target == OrderStatusProcessing || target == OrderStatusCancelled || target == OrderStatusRefunded
	case OrderStatusProcessing:
		return target == OrderStatusShipped || target == OrderStatusCancelled
	case OrderStatusShipped:
		return target == OrderStatusDelivered
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return false
	default:
		return false
	}
}

// Successors returns the allowed next statuses for s.
func (s OrderStatus) Successors() []OrderStatus {
	switch s.Normalize() {
	case OrderStatusPending:
		return []OrderStatus{OrderStatusPaid, OrderStatusCancelled}
	case OrderStatusPaid:
		return []OrderStatus{OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded}
	case OrderStatusProcessing:
		return []OrderStatus{OrderStatusShipped, OrderStatusCancelled}
	case OrderStatusShipped:
		return []OrderStatus{OrderStatusDelivered}
	default:
		return nil
	}
}
