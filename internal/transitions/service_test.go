package transitions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/internal/inventory"
	"github.com/ivanberrios/storefront-backend/internal/orders"
	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/outbox"
	"github.com/ivanberrios/storefront-backend/pkg/square"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeRefunder struct {
	refundCalls int
	cancelCalls int
	lastRefund  square.RefundCreateParams
	refundErr   error
}

func (f *fakeRefunder) CancelPayment(_ context.Context, paymentID string) (*sq.Payment, error) {
	f.cancelCalls++
	status := "CANCELED"
	return &sq.Payment{ID: &paymentID, Status: &status}, nil
}

func (f *fakeRefunder) RefundPayment(_ context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error) {
	f.refundCalls++
	f.lastRefund = params
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	id := "refund_1"
	return &sq.PaymentRefund{ID: &id}, nil
}

type transitionsFixture struct {
	db       *gorm.DB
	svc      Service
	provider *fakeRefunder
}

func setupTransitions(t *testing.T) *transitionsFixture {
	t.Helper()
	dsn := "file:transitions_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.Variant{},
		&models.Order{}, &models.OrderItem{},
		&models.OutboxEvent{},
	))

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
	stockSvc, err := inventory.NewService(inventory.NewRepository(db))
	require.NoError(t, err)

	provider := &fakeRefunder{}
	svc, err := NewService(ServiceParams{
		TransactionRunner: gormTxRunner{db: db},
		OrderRepo:         orders.NewRepository(db),
		Stock:             stockSvc,
		Provider:          provider,
		Outbox:            outbox.NewService(outbox.NewRepository(db), logg),
		Logger:            logg,
	})
	require.NoError(t, err)
	return &transitionsFixture{db: db, svc: svc, provider: provider}
}

func seedVariant(t *testing.T, db *gorm.DB, sku string, qty int) models.Variant {
	t.Helper()
	product := &models.Product{
		ID:     uuid.New(),
		Title:  "Widget " + sku,
		Active: true,
		Variants: []models.Variant{
			{ID: uuid.New(), SKU: sku, AvailableQty: qty, UnitPriceCents: 1500},
		},
	}
	require.NoError(t, db.Create(product).Error)
	return product.Variants[0]
}

// seedOrder creates an order in the given status. Statuses past PENDING get
// the timestamps capture would have written.
func seedOrder(t *testing.T, db *gorm.DB, variant models.Variant, status enums.OrderStatus, qty int) *models.Order {
	t.Helper()
	ref := "pay_" + uuid.NewString()
	order := &models.Order{
		ID:            uuid.New(),
		Status:        status,
		Currency:      enums.CurrencyUSD,
		TotalCents:    variant.UnitPriceCents * qty,
		CustomerName:  "Dana Whitfield",
		CustomerEmail: "dana@example.com",
		PaymentRef:    &ref,
		Items: []models.OrderItem{
			{
				ID:             uuid.New(),
				VariantID:      variant.ID,
				SKU:            variant.SKU,
				Name:           "Widget " + variant.SKU,
				UnitPriceCents: variant.UnitPriceCents,
				Quantity:       qty,
			},
		},
	}
	if status.Normalize() != enums.OrderStatusPending {
		now := time.Now()
		order.PaidAt = &now
		order.StockCommittedAt = &now
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func variantQty(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var variant models.Variant
	require.NoError(t, db.First(&variant, "id = ?", id).Error)
	return variant.AvailableQty
}

func outboxRows(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestCancelPaidOrderRestocksOnce(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-1", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusPaid, 2)

	cancelled, err := fx.svc.Cancel(context.Background(), order.ID, "customer request")
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.PaidAt)
	require.NotNil(t, cancelled.RestockedAt)
	assert.Equal(t, 5, variantQty(t, fx.db, variant.ID))
	assert.Equal(t, int64(1), outboxRows(t, fx.db, enums.EventOrderCancelled))

	// Cancelling again is rejected and never restocks a second time.
	_, err = fx.svc.Cancel(context.Background(), order.ID, "again")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInvalidTransition, appErr.Code())
	assert.Equal(t, 5, variantQty(t, fx.db, variant.ID))
}

func TestCancelPendingOrderVoidsAuthWithoutRestock(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-2", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusPending, 2)

	cancelled, err := fx.svc.Cancel(context.Background(), order.ID, "abandoned")
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.RestockedAt)
	// Pending orders never committed stock, so nothing comes back.
	assert.Equal(t, 3, variantQty(t, fx.db, variant.ID))
	assert.Equal(t, 1, fx.provider.cancelCalls)
	assert.Zero(t, fx.provider.refundCalls)
}

func TestRefundPaidOrderPaysBackAndRestocks(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-3", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusPaid, 2)

	refunded, err := fx.svc.Refund(context.Background(), order.ID, "defective")
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.PaidAt)
	assert.Equal(t, 5, variantQty(t, fx.db, variant.ID))
	assert.Equal(t, 1, fx.provider.refundCalls)
	assert.Equal(t, *order.PaymentRef, fx.provider.lastRefund.PaymentID)
	assert.Equal(t, int64(order.TotalCents), fx.provider.lastRefund.AmountCents)
	assert.Equal(t, "refund-"+order.ID.String(), fx.provider.lastRefund.IdempotencyKey)
	assert.Equal(t, int64(1), outboxRows(t, fx.db, enums.EventOrderRefunded))
}

func TestRefundProviderFailureLeavesOrderUntouched(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-4", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusPaid, 2)
	fx.provider.refundErr = pkgerrors.New(pkgerrors.CodeProvider, "square is down")

	_, err := fx.svc.Refund(context.Background(), order.ID, "defective")
	require.Error(t, err)

	var reloaded models.Order
	require.NoError(t, fx.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
	assert.Nil(t, reloaded.RestockedAt)
	assert.Equal(t, 3, variantQty(t, fx.db, variant.ID))
}

func TestRefundShippedOrderIsRejected(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-5", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusShipped, 1)

	_, err := fx.svc.Refund(context.Background(), order.ID, "too late")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInvalidTransition, appErr.Code())
	assert.Zero(t, fx.provider.refundCalls)
}

func TestUpdateStatusRejectsDirectPaid(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-6", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusPending, 1)

	_, err := fx.svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusPaid)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	var reloaded models.Order
	require.NoError(t, fx.db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, reloaded.Status)
}

func TestShipThenDeliver(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-7", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusPaid, 1)

	processing, err := fx.svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, processing.Status)

	shipped, err := fx.svc.MarkShipped(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)

	delivered, err := fx.svc.MarkDelivered(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	// Ledger untouched along the fulfillment path.
	assert.Equal(t, 3, variantQty(t, fx.db, variant.ID))
	assert.Equal(t, int64(1), outboxRows(t, fx.db, enums.EventOrderShipped))
	assert.Equal(t, int64(1), outboxRows(t, fx.db, enums.EventOrderDelivered))
}

func TestAttachTrackingWhileProcessingAutoShips(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-8", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusProcessing, 1)

	updated, err := fx.svc.AttachTracking(context.Background(), order.ID, "1Z999AA10123456784")
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusShipped, updated.Status)
	require.NotNil(t, updated.TrackingNumber)
	assert.Equal(t, "1Z999AA10123456784", *updated.TrackingNumber)
	require.NotNil(t, updated.ShippedAt)
	assert.Equal(t, int64(1), outboxRows(t, fx.db, enums.EventOrderShipped))
}

func TestAttachTrackingWhileShippedUpdatesNumberOnly(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-9", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusShipped, 1)

	updated, err := fx.svc.AttachTracking(context.Background(), order.ID, "1Z999AA10123456785")
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusShipped, updated.Status)
	require.NotNil(t, updated.TrackingNumber)
	assert.Equal(t, "1Z999AA10123456785", *updated.TrackingNumber)
	// No second shipped event for a tracking correction.
	assert.Zero(t, outboxRows(t, fx.db, enums.EventOrderShipped))
}

func TestAttachTrackingRejectsOtherStatuses(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-10", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusPending, 1)

	_, err := fx.svc.AttachTracking(context.Background(), order.ID, "1Z999AA10123456786")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestLegacyConfirmedCancelRestocks(t *testing.T) {
	fx := setupTransitions(t)
	variant := seedVariant(t, fx.db, "SKU-TR-11", 3)
	order := seedOrder(t, fx.db, variant, enums.OrderStatusConfirmed, 2)

	cancelled, err := fx.svc.Cancel(context.Background(), order.ID, "legacy row")
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 5, variantQty(t, fx.db, variant.ID))
}

func TestTransitionUnknownOrder(t *testing.T) {
	fx := setupTransitions(t)

	_, err := fx.svc.MarkShipped(context.Background(), uuid.New())
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}
