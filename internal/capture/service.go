package capture

import (
	"context"
	"fmt"
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
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentCapturer interface {
	CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// Service settles authorized payments and commits stock, atomically.
type Service interface {
	CapturePayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	tx        txRunner
	orderRepo orders.Repository
	stock     inventory.Service
	provider  paymentCapturer
	outbox    outboxPublisher
	flow      *metrics.OrderFlowMetrics
	logg      *logger.Logger
}

// ServiceParams lists the capture coordinator dependencies.
type ServiceParams struct {
	TransactionRunner txRunner
	OrderRepo         orders.Repository
	Stock             inventory.Service
	Provider          paymentCapturer
	Outbox            outboxPublisher
	Flow              *metrics.OrderFlowMetrics
	Logger            *logger.Logger
}

// NewService builds the capture coordinator.
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

// CapturePayment moves a PENDING order to PAID. Inside one transaction it
// claims the order row, conditionally decrements every frozen line, and asks
// the provider to capture; only when all three succeed does the commit make
// the decrement and the PAID status visible. A provider failure rolls
// everything back, so stock is never wrongly committed and the call is safe
// to retry. A stock failure triggers the compensating path: void the
// authorization and cancel the order.
func (s *service) CapturePayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
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

	if order.Status.Normalize() != enums.OrderStatusPending {
		return nil, pkgerrors.New(
			pkgerrors.CodeStateConflict,
			fmt.Sprintf("capture requires a pending order, status is %s", order.Status.Normalize()),
		).WithDetails(map[string]any{"status": order.Status.Normalize()})
	}
	if order.PaymentRef == nil || *order.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment authorization")
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no line items")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"payment_ref": *order.PaymentRef,
	})

	now := time.Now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)

		updates := map[string]any{
			"status":             enums.OrderStatusPaid,
			"stock_committed_at": now,
		}
		if order.PaidAt == nil {
			updates["paid_at"] = now
		}
		// Claiming the row first serializes competing captures of the
		// same order; the loser sees zero rows and stops.
		won, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order left pending during capture")
		}

		if err := s.stock.DecrementForOrder(ctx, tx, order.Items); err != nil {
			return err
		}

		if _, err := s.provider.CompletePayment(ctx, *order.PaymentRef); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderPaidEvent{
				OrderID:    order.ID,
				PaymentRef: *order.PaymentRef,
				TotalCents: order.TotalCents,
			},
		})
	})
	if err != nil {
		appErr := pkgerrors.As(err)
		if appErr != nil && appErr.Code() == pkgerrors.CodeOutOfStock {
			s.flow.IncCapture(metrics.CaptureResultOutOfStock)
			return nil, s.cancelAfterStockFailure(ctx, order, err)
		}
		s.flow.IncCapture(metrics.CaptureResultProviderError)
		s.logg.Error(logCtx, "capture failed", err)
		return nil, err
	}

	s.flow.IncCapture(metrics.CaptureResultSuccess)
	s.logg.Info(logCtx, "payment captured and stock committed")

	captured, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return captured, nil
}

// cancelAfterStockFailure is the compensating action for the window between
// authorization and capture: the rollback already restored any partial
// decrement, so void the hold and cancel the order. The original
// out-of-stock error is returned so callers see which line failed.
func (s *service) cancelAfterStockFailure(ctx context.Context, order *models.Order, stockErr error) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
	})

	if _, err := s.provider.CancelPayment(ctx, *order.PaymentRef); err != nil {
		// The authorization expires on its own; the order is still
		// cancelled locally.
		s.logg.Error(logCtx, "failed to void authorization", err)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)
		won, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, map[string]any{
			"status": enums.OrderStatusCancelled,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !won {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				From:    enums.OrderStatusPending,
				To:      enums.OrderStatusCancelled,
				Reason:  "out_of_stock",
			},
		})
	})
	if err != nil {
		s.logg.Error(logCtx, "compensating cancellation failed", err)
		return err
	}

	s.logg.Info(logCtx, "order cancelled after stock shortage")
	return stockErr
}
