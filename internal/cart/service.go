package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
)

var nowFunc = time.Now

// Service manages the mutable pre-checkout container.
type Service interface {
	GetOrCreate(ctx context.Context, sessionID string, userID *uuid.UUID) (*models.Cart, error)
	SetItem(ctx context.Context, sessionID string, variantID uuid.UUID, quantity int) (*models.Cart, error)
	Convert(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	AbandonStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type service struct {
	repo Repository
}

// NewService builds the cart service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetOrCreate(ctx context.Context, sessionID string, userID *uuid.UUID) (*models.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	cart, err := s.repo.FindActiveBySession(ctx, sessionID)
	switch {
	case err == nil:
		return cart, nil
	case err == gorm.ErrRecordNotFound:
		created := &models.Cart{
			ID:        uuid.New(),
			SessionID: sessionID,
			UserID:    userID,
			Status:    enums.CartStatusActive,
		}
		return s.repo.Create(ctx, created)
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
}

// SetItem writes the absolute quantity for a variant. Zero removes the line.
func (s *service) SetItem(ctx context.Context, sessionID string, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	cart, err := s.GetOrCreate(ctx, sessionID, nil)
	if err != nil {
		return nil, err
	}
	if cart.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart already processed")
	}

	if quantity == 0 {
		if err := s.repo.RemoveItem(ctx, cart.ID, variantID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
	} else if err := s.repo.UpsertItem(ctx, cart.ID, variantID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write cart item")
	}

	reloaded, err := s.repo.FindByID(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return reloaded, nil
}

// Convert freezes the cart inside the caller's transaction. Losing the
// status race is not an error: the cart was already converted by the
// delivery that won.
func (s *service) Convert(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	repo := s.repo.WithTx(tx)
	if _, err := repo.MarkConverted(ctx, cartID, nowFunc()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
	}
	return nil
}

// AbandonStale flips carts untouched for olderThan to abandoned and
// reports how many were swept.
func (s *service) AbandonStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "abandon window must be positive")
	}
	count, err := s.repo.MarkAbandonedBefore(ctx, nowFunc().Add(-olderThan))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandon stale carts")
	}
	return count, nil
}
