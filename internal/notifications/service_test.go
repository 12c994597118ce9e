package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
)

func setupNotificationsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))
	return db
}

func seedNotification(t *testing.T, db *gorm.DB, orderID uuid.UUID, createdAt time.Time) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		ID:        uuid.New(),
		OrderID:   orderID,
		Type:      enums.NotificationOrderCreated,
		Title:     "New order received",
		Message:   "Order awaiting capture.",
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(notification).Error)
	return notification
}

func TestListPaginatesNewestFirst(t *testing.T) {
	db := setupNotificationsDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	orderID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedNotification(t, db, orderID, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := svc.List(context.Background(), ListParams{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	require.NotEmpty(t, first.Cursor)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))

	second, err := svc.List(context.Background(), ListParams{Limit: 3, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Empty(t, second.Cursor)
}

func TestListFiltersByOrder(t *testing.T) {
	db := setupNotificationsDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	target := uuid.New()
	seedNotification(t, db, target, time.Now())
	seedNotification(t, db, uuid.New(), time.Now())

	result, err := svc.List(context.Background(), ListParams{OrderID: &target, Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, target, result.Items[0].OrderID)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db := setupNotificationsDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	notification := seedNotification(t, db, uuid.New(), time.Now())

	require.NoError(t, svc.MarkRead(context.Background(), notification.ID))
	require.NoError(t, svc.MarkRead(context.Background(), notification.ID))

	var reloaded models.Notification
	require.NoError(t, db.First(&reloaded, "id = ?", notification.ID).Error)
	require.NotNil(t, reloaded.ReadAt)
}

func TestMarkReadUnknownID(t *testing.T) {
	db := setupNotificationsDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	err = svc.MarkRead(context.Background(), uuid.New())
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestMarkAllReadCountsUnreadOnly(t *testing.T) {
	db := setupNotificationsDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	seedNotification(t, db, uuid.New(), time.Now())
	read := seedNotification(t, db, uuid.New(), time.Now())
	require.NoError(t, svc.MarkRead(context.Background(), read.ID))

	count, err := svc.MarkAllRead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestComposeNotificationCopy(t *testing.T) {
	orderID := uuid.New()
	shortID := orderID.String()[:8]

	title, message := composeNotification(enums.NotificationOrderCreated, orderEventPayload{
		OrderID:       orderID,
		TotalCents:    5000,
		CustomerEmail: "dana@example.com",
	})
	assert.Equal(t, "New order received", title)
	assert.Contains(t, message, shortID)
	assert.Contains(t, message, "dana@example.com")
	assert.Contains(t, message, "$50.00")

	title, message = composeNotification(enums.NotificationOrderShipped, orderEventPayload{
		OrderID:        orderID,
		TrackingNumber: "1Z999",
	})
	assert.Equal(t, "Order shipped", title)
	assert.Contains(t, message, "1Z999")

	title, message = composeNotification(enums.NotificationOrderCancelled, orderEventPayload{
		OrderID:   orderID,
		Reason:    "out_of_stock",
		Restocked: false,
	})
	assert.Equal(t, "Order cancelled", title)
	assert.Contains(t, message, "out_of_stock")
	assert.NotContains(t, message, "Stock returned")
}
