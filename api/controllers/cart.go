package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/api/responses"
	"github.com/ivanberrios/storefront-backend/api/validators"
	cartsvc "github.com/ivanberrios/storefront-backend/internal/cart"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
)

type setCartItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=0,max=999"`
}

// GetCart returns the active cart for the storefront session, creating an
// empty one on first touch.
func GetCart(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		sessionID, err := cartSessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetOrCreate(r.Context(), sessionID, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// SetCartItem upserts a line on the session cart. Quantity zero removes the line.
func SetCartItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		sessionID, err := cartSessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.SetItem(r.Context(), sessionID, body.VariantID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

func cartSessionID(r *http.Request) (string, error) {
	sessionID := strings.TrimSpace(r.Header.Get("X-Cart-Session"))
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "X-Cart-Session header required")
	}
	if len(sessionID) > 128 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "X-Cart-Session header too long")
	}
	return sessionID, nil
}
