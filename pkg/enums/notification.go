package enums

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationOrderCreated   NotificationType = "order_created"
	NotificationOrderPaid      NotificationType = "order_paid"
	NotificationOrderShipped   NotificationType = "order_shipped"
	NotificationOrderDelivered NotificationType = "order_delivered"
	NotificationOrderCancelled NotificationType = "order_cancelled"
	NotificationOrderRefunded  NotificationType = "order_refunded"
)

// IsValid reports whether the value is a known notification type.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationOrderCreated, NotificationOrderPaid, NotificationOrderShipped,
		NotificationOrderDelivered, NotificationOrderCancelled, NotificationOrderRefunded:
		return true
	}
	return false
}

// ForEvent maps an outbox event type to its notification type.
func ForEvent(event OutboxEventType) (NotificationType, bool) {
	switch event {
	case EventOrderCreated:
		return NotificationOrderCreated, true
	case EventOrderPaid:
		return NotificationOrderPaid, true
	case EventOrderShipped:
		return NotificationOrderShipped, true
	case EventOrderDelivered:
		return NotificationOrderDelivered, true
	case EventOrderCancelled:
		return NotificationOrderCancelled, true
	case EventOrderRefunded:
		return NotificationOrderRefunded, true
	}
	return "", false
}
