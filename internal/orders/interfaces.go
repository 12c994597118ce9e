package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	"github.com/ivanberrios/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error)
}

// ListFilters describe the inputs supported by the admin order list.
type ListFilters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Query    string
}
