package enums

// OutboxEventType enumerates the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order.created"
	EventOrderPaid      OutboxEventType = "order.paid"
	EventOrderShipped   OutboxEventType = "order.shipped"
	EventOrderDelivered OutboxEventType = "order.delivered"
	EventOrderCancelled OutboxEventType = "order.cancelled"
	EventOrderRefunded  OutboxEventType = "order.refunded"
)

// IsValid reports whether the value is a known event type.
func (t OutboxEventType) IsValid() bool {
	switch t {
	case EventOrderCreated, EventOrderPaid, EventOrderShipped,
		EventOrderDelivered, EventOrderCancelled, EventOrderRefunded:
		return true
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

// OutboxDLQErrorReason explains why an outbox event was parked.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)
