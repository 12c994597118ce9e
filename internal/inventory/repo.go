package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
)

// Repository manages persistence for variant stock rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Variant, error)
	FindBySKU(ctx context.Context, sku string) (*models.Variant, error)
	// DecrementQty subtracts qty in a single conditional statement and
	// reports whether a row matched. A zero count means the variant is
	// missing or short on stock; the caller disambiguates.
	DecrementQty(ctx context.Context, id uuid.UUID, qty int) (int64, error)
	IncrementQty(ctx context.Context, id uuid.UUID, qty int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) FindBySKU(ctx context.Context, sku string) (*models.Variant, error) {
	var variant models.Variant
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) DecrementQty(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE variants
		SET available_qty = available_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_qty >= ?
	`, qty, id, qty)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) IncrementQty(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE variants
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, id)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
