package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/pagination"
)

// VariantDetail pairs a variant with its parent product for checkout pricing.
type VariantDetail struct {
	Variant models.Variant
	Product models.Product
}

// Repository exposes catalog reads for checkout and the storefront listing.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariantDetail(ctx context.Context, variantID uuid.UUID) (*VariantDetail, error)
	ListActiveProducts(ctx context.Context, params pagination.Params) ([]models.Product, string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindVariantDetail(ctx context.Context, variantID uuid.UUID) (*VariantDetail, error) {
	var variant models.Variant
	err := r.db.WithContext(ctx).
		Where("id = ?", variantID).
		First(&variant).Error
	if err != nil {
		return nil, err
	}

	var product models.Product
	err = r.db.WithContext(ctx).
		Where("id = ?", variant.ProductID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &VariantDetail{Variant: variant, Product: product}, nil
}

func (r *repository) ListActiveProducts(ctx context.Context, params pagination.Params) ([]models.Product, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("active = ?", true)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var products []models.Product
	if err := query.Preload("Variants").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(products) > normalized {
		next := products[normalized]
		products = products[:normalized]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID})
	}
	return products, nextCursor, nil
}
