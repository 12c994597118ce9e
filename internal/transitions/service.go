package transitions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/internal/inventory"
	"github.com/ivanberrios/storefront-backend/internal/orders"
	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/metrics"
	"github.com/ivanberrios/storefront-backend/pkg/outbox"
	"github.com/ivanberrios/storefront-backend/pkg/outbox/payloads"
	"github.com/ivanberrios/storefront-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentRefunder interface {
	CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error)
}

// Service applies operator-driven lifecycle transitions: shipping, delivery,
// cancellation, refunds, and tracking. Capture has its own coordinator; this
// service refuses to move an order into PAID directly, since only capture may
// commit stock.
type Service interface {
	UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AttachTracking(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*models.Order, error)
}

type service struct {
	tx        txRunner
	orderRepo orders.Repository
	stock     inventory.Service
	provider  paymentRefunder
	outbox    outboxPublisher
	flow      *metrics.OrderFlowMetrics
	logg      *logger.Logger
}

// ServiceParams lists the transition service dependencies.
type ServiceParams struct {
	TransactionRunner txRunner
	OrderRepo         orders.Repository
	Stock             inventory.Service
	Provider          paymentRefunder
	Outbox            outboxPublisher
	Flow              *metrics.OrderFlowMetrics
	Logger            *logger.Logger
}

// NewService builds the transition service.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.OrderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        params.TransactionRunner,
		orderRepo: params.OrderRepo,
		stock:     params.Stock,
		provider:  params.Provider,
		outbox:    params.Outbox,
		flow:      params.Flow,
		logg:      params.Logger,
	}, nil
}

// UpdateStatus moves an order to target along the lifecycle machine.
// Transitions out of PAID or PROCESSING into CANCELLED or REFUNDED restock
// the frozen line items exactly once, in the same transaction as the status
// change.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	return s.transition(ctx, orderID, target, "")
}

// Cancel cancels an order. Orders that committed stock are restocked; a
// still-pending order has its payment authorization voided instead.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusCancelled, reason)
}

// Refund returns the captured funds to the customer and restocks. Only legal
// from PAID: once an order is PROCESSING or beyond, cancel first.
func (s *service) Refund(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusRefunded, reason)
}

// MarkShipped moves a PROCESSING order to SHIPPED.
func (s *service) MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusShipped, "")
}

// MarkDelivered moves a SHIPPED order to DELIVERED.
func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusDelivered, "")
}

// AttachTracking records the carrier tracking number. Legal while the order
// is PROCESSING or SHIPPED; a PROCESSING order advances to SHIPPED as part of
// the same write, since a tracking number means the parcel left the building.
func (s *service) AttachTracking(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*models.Order, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := order.Status.Normalize()
	switch current {
	case enums.OrderStatusProcessing:
		return s.transitionOrder(ctx, order, enums.OrderStatusShipped, "", trackingNumber)
	case enums.OrderStatusShipped:
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.orderRepo.WithTx(tx).Update(ctx, order.ID, map[string]any{
				"tracking_number": trackingNumber,
			})
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach tracking")
		}
		order.TrackingNumber = &trackingNumber
		return order, nil
	default:
		return nil, pkgerrors.New(
			pkgerrors.CodeStateConflict,
			fmt.Sprintf("tracking can only be attached while processing or shipped, status is %s", current),
		).WithDetails(map[string]any{"status": current})
	}
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, reason string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transitionOrder(ctx, order, target, reason, "")
}

func (s *service) transitionOrder(ctx context.Context, order *models.Order, target enums.OrderStatus, reason, trackingNumber string) (*models.Order, error) {
	// PENDING to PAID belongs to the capture coordinator; going through
	// here would mark an order paid without ever committing stock.
	if target.Normalize() == enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "orders become paid through payment capture, not a status update")
	}

	now := time.Now()
	updates, err := orders.TransitionUpdates(order, target, now)
	if err != nil {
		return nil, err
	}
	target = target.Normalize()
	from := order.Status.Normalize()

	if trackingNumber != "" {
		updates["tracking_number"] = trackingNumber
	}

	restock := s.shouldRestock(order, from, target)
	if restock {
		updates["restocked_at"] = now
	}

	if target == enums.OrderStatusRefunded {
		if err := s.refundProvider(ctx, order, reason); err != nil {
			return nil, err
		}
	} else if target == enums.OrderStatusCancelled && from == enums.OrderStatusPending {
		s.voidAuthorization(ctx, order)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"from":     from,
		"to":       target,
	})

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)

		won, err := repo.UpdateStatusIf(ctx, order.ID, order.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply transition")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed during transition")
		}

		if restock {
			if err := s.stock.IncrementForOrder(ctx, tx, order.Items); err != nil {
				return err
			}
		}

		if eventType, ok := eventForStatus(target); ok {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     eventType,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderStatusChangedEvent{
					OrderID:        order.ID,
					From:           from,
					To:             target,
					TrackingNumber: trackingNumber,
					Restocked:      restock,
					Reason:         reason,
				},
			})
		}
		return nil
	})
	if err != nil {
		s.logg.Error(logCtx, "transition failed", err)
		return nil, err
	}

	if restock {
		s.flow.IncRestock()
	}
	s.logg.Info(logCtx, "order transitioned")

	orders.ApplyTransition(order, target, now)
	if trackingNumber != "" {
		order.TrackingNumber = &trackingNumber
	}
	if restock {
		ts := now
		order.RestockedAt = &ts
	}
	return order, nil
}

// shouldRestock reports whether this transition must return the frozen line
// items to the shelf. Stock comes back at most once per order, and only when
// it was committed at capture in the first place.
func (s *service) shouldRestock(order *models.Order, from, target enums.OrderStatus) bool {
	if target != enums.OrderStatusCancelled && target != enums.OrderStatusRefunded {
		return false
	}
	if from != enums.OrderStatusPaid && from != enums.OrderStatusProcessing {
		return false
	}
	return order.StockCommittedAt != nil && order.RestockedAt == nil
}

func (s *service) refundProvider(ctx context.Context, order *models.Order, reason string) error {
	if order.PaymentRef == nil || *order.PaymentRef == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment reference to refund")
	}
	// The idempotency key pins retried refunds of the same order to a
	// single provider-side refund, so a crash between the refund and the
	// status write cannot double-pay the customer.
	_, err := s.provider.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:      *order.PaymentRef,
		AmountCents:    int64(order.TotalCents),
		Currency:       string(order.Currency),
		Reason:         reason,
		IdempotencyKey: "refund-" + order.ID.String(),
	})
	return err
}

// voidAuthorization releases the uncaptured hold on a pending order. Failure
// is logged but does not block the cancellation; the authorization expires on
// its own.
func (s *service) voidAuthorization(ctx context.Context, order *models.Order) {
	if order.PaymentRef == nil || *order.PaymentRef == "" {
		return
	}
	if _, err := s.provider.CancelPayment(ctx, *order.PaymentRef); err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
		}), "failed to void authorization", err)
	}
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func eventForStatus(target enums.OrderStatus) (enums.OutboxEventType, bool) {
	switch target {
	case enums.OrderStatusShipped:
		return enums.EventOrderShipped, true
	case enums.OrderStatusDelivered:
		return enums.EventOrderDelivered, true
	case enums.OrderStatusCancelled:
		return enums.EventOrderCancelled, true
	case enums.OrderStatusRefunded:
		return enums.EventOrderRefunded, true
	}
	return "", false
}
