package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
)

// Repository defines persistence operations for carts and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindActiveBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	UpsertItem(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, cartID, variantID uuid.UUID) error
	MarkConverted(ctx context.Context, cartID uuid.UUID, now time.Time) (bool, error)
	MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindActiveBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("session_id = ? AND status = ?", sessionID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) UpsertItem(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error {
	var existing models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		First(&existing).Error
	switch {
	case err == nil:
		return r.db.WithContext(ctx).
			Model(&models.CartItem{}).
			Where("id = ?", existing.ID).
			Update("quantity", quantity).Error
	case err == gorm.ErrRecordNotFound:
		item := models.CartItem{
			ID:        uuid.New(),
			CartID:    cartID,
			VariantID: variantID,
			Quantity:  quantity,
		}
		return r.db.WithContext(ctx).Create(&item).Error
	default:
		return err
	}
}

func (r *repository) RemoveItem(ctx context.Context, cartID, variantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		Delete(&models.CartItem{}).Error
}

// MarkConverted freezes the cart. The status guard makes conversion a
// one-way, once-only move even when two webhooks race on the same session.
func (r *repository) MarkConverted(ctx context.Context, cartID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive).
		Updates(map[string]any{
			"status":       enums.CartStatusConverted,
			"converted_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("status = ? AND updated_at < ?", enums.CartStatusActive, cutoff).
		Update("status", enums.CartStatusAbandoned)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
