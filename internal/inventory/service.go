package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
)

// Service is the inventory ledger. Availability is enforced by conditional
// single-statement updates so a check is never separated from its decrement;
// per-order operations run against the order's frozen line-item snapshot
// inside a caller-supplied transaction.
type Service interface {
	CheckAvailability(ctx context.Context, variantID uuid.UUID, qty int) (*models.Variant, error)
	Decrement(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Increment(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	DecrementForOrder(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error
	IncrementForOrder(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error
}

type service struct {
	repo Repository
}

// NewService wires the inventory ledger with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

// OutOfStockDetails names the short line so operator tooling can decide
// whether to retry, refund, or contact the customer.
type OutOfStockDetails struct {
	VariantID uuid.UUID `json:"variant_id"`
	SKU       string    `json:"sku"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

func (s *service) CheckAvailability(ctx context.Context, variantID uuid.UUID, qty int) (*models.Variant, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	variant, err := s.repo.FindByID(ctx, variantID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if variant.AvailableQty < qty {
		return nil, outOfStockError(variant, qty)
	}
	return variant, nil
}

func (s *service) Decrement(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)

	affected, err := repo.DecrementQty(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if affected > 0 {
		return nil
	}

	// No row matched: either the variant is gone or it is short on stock.
	variant, err := repo.FindByID(ctx, variantID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	return outOfStockError(variant, qty)
}

func (s *service) Increment(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	affected, err := s.repo.WithTx(tx).IncrementQty(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	return nil
}

func (s *service) DecrementForOrder(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order stock commit")
	}
	for _, line := range collapseLines(items) {
		if err := s.Decrement(ctx, tx, line.variantID, line.qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) IncrementForOrder(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order restock")
	}
	for _, line := range collapseLines(items) {
		if err := s.Increment(ctx, tx, line.variantID, line.qty); err != nil {
			return err
		}
	}
	return nil
}

type collapsedLine struct {
	variantID uuid.UUID
	qty       int
}

// collapseLines aggregates quantities per variant and orders them by
// ascending variant id, so overlapping orders take row locks in a stable
// order and cannot deadlock each other.
func collapseLines(items []models.OrderItem) []collapsedLine {
	byVariant := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		byVariant[item.VariantID] += item.Quantity
	}

	lines := make([]collapsedLine, 0, len(byVariant))
	for id, qty := range byVariant {
		lines = append(lines, collapsedLine{variantID: id, qty: qty})
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].variantID.String() < lines[j].variantID.String()
	})
	return lines
}

func outOfStockError(variant *models.Variant, requested int) error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock,
		fmt.Sprintf("insufficient stock for %s", variant.SKU)).
		WithDetails(OutOfStockDetails{
			VariantID: variant.ID,
			SKU:       variant.SKU,
			Requested: requested,
			Available: variant.AvailableQty,
		})
}
