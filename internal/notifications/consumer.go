package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/outbox"
	"github.com/ivanberrios/storefront-backend/pkg/outbox/idempotency"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches order lifecycle events and materializes in-app
// notifications for the admin inbox. Failures here never roll back the order
// or stock state that produced the event; at worst the message is retried.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	notificationType, ok := enums.ForEvent(eventType)
	if !ok {
		c.logg.Info(logCtx, "skipping unhandled event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload orderEventPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	if payload.OrderID == uuid.Nil {
		c.logg.Error(logCtx, "order id missing", fmt.Errorf("empty order_id in %s payload", eventType))
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"order_id": payload.OrderID.String(),
	})

	title, message := composeNotification(notificationType, payload)
	notification := &models.Notification{
		OrderID: payload.OrderID,
		Type:    notificationType,
		Title:   title,
		Message: message,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "order notification created")
	return processResult{ack: true}
}

// orderEventPayload is the union of the fields the notification copy needs
// across the order event payloads.
type orderEventPayload struct {
	OrderID        uuid.UUID `json:"order_id"`
	TotalCents     int       `json:"total_cents"`
	CustomerEmail  string    `json:"customer_email"`
	TrackingNumber string    `json:"tracking_number"`
	Reason         string    `json:"reason"`
	Restocked      bool      `json:"restocked"`
}

func composeNotification(notificationType enums.NotificationType, payload orderEventPayload) (string, string) {
	shortID := payload.OrderID.String()[:8]
	switch notificationType {
	case enums.NotificationOrderCreated:
		return "New order received",
			fmt.Sprintf("Order %s was created for %s ($%.2f), awaiting capture.", shortID, payload.CustomerEmail, float64(payload.TotalCents)/100)
	case enums.NotificationOrderPaid:
		return "Order paid",
			fmt.Sprintf("Order %s was captured ($%.2f) and stock committed.", shortID, float64(payload.TotalCents)/100)
	case enums.NotificationOrderShipped:
		if payload.TrackingNumber != "" {
			return "Order shipped",
				fmt.Sprintf("Order %s shipped with tracking %s.", shortID, payload.TrackingNumber)
		}
		return "Order shipped", fmt.Sprintf("Order %s shipped.", shortID)
	case enums.NotificationOrderDelivered:
		return "Order delivered", fmt.Sprintf("Order %s was delivered.", shortID)
	case enums.NotificationOrderCancelled:
		message := fmt.Sprintf("Order %s was cancelled.", shortID)
		if payload.Reason != "" {
			message = fmt.Sprintf("Order %s was cancelled: %s.", shortID, payload.Reason)
		}
		if payload.Restocked {
			message += " Stock returned."
		}
		return "Order cancelled", message
	case enums.NotificationOrderRefunded:
		message := fmt.Sprintf("Order %s was refunded.", shortID)
		if payload.Reason != "" {
			message = fmt.Sprintf("Order %s was refunded: %s.", shortID, payload.Reason)
		}
		if payload.Restocked {
			message += " Stock returned."
		}
		return "Order refunded", message
	default:
		return "Order updated", fmt.Sprintf("Order %s was updated.", shortID)
	}
}
