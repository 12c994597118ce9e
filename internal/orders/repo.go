package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	"github.com/ivanberrios/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_ref = ?", paymentRef).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// UpdateStatusIf applies updates only while the order still sits in the
// expected status. The RowsAffected result tells callers whether they won
// the race against a concurrent transition.
func (r *repository) UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	if filters.Query != "" {
		like := "%" + filters.Query + "%"
		query = query.Where("customer_email LIKE ? OR customer_name LIKE ?", like, like)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &OrderList{}
	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID})
	}

	list.Orders = make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		totalItems := 0
		for _, item := range row.Items {
			totalItems += item.Quantity
		}
		list.Orders = append(list.Orders, OrderSummary{
			ID:             row.ID,
			CreatedAt:      row.CreatedAt,
			Status:         row.Status.Normalize(),
			TotalCents:     row.TotalCents,
			DiscountCents:  row.DiscountCents,
			TotalItems:     totalItems,
			CustomerName:   row.CustomerName,
			CustomerEmail:  row.CustomerEmail,
			TrackingNumber: row.TrackingNumber,
		})
	}
	return list, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error) {
	type statusCount struct {
		Status enums.OrderStatus
		Total  int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status.Normalize()] += row.Total
	}
	return counts, nil
}
