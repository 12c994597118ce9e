package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/api/responses"
	"github.com/ivanberrios/storefront-backend/api/validators"
	checkoutsvc "github.com/ivanberrios/storefront-backend/internal/checkout"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/types"
)

type checkoutSessionItem struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=999"`
}

type checkoutSessionCustomer struct {
	Name    string         `json:"name" validate:"required,max=120"`
	Email   string         `json:"email" validate:"required,email"`
	Phone   string         `json:"phone" validate:"omitempty,max=32"`
	Address *types.Address `json:"address"`
}

type checkoutSessionRequest struct {
	PaymentToken string                  `json:"payment_token" validate:"required,max=256"`
	Items        []checkoutSessionItem   `json:"items" validate:"required,min=1,max=50,dive"`
	Customer     checkoutSessionCustomer `json:"customer" validate:"required"`
}

// CreateCheckoutSession prices the requested lines and places a payment
// hold using the card token minted by the storefront's payment form.
func CreateCheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var body checkoutSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.SessionInput{
			SessionID:    strings.TrimSpace(r.Header.Get("X-Cart-Session")),
			PaymentToken: strings.TrimSpace(body.PaymentToken),
			Customer: checkoutsvc.CustomerInput{
				Name:    validators.SanitizeString(body.Customer.Name, 120),
				Email:   strings.ToLower(strings.TrimSpace(body.Customer.Email)),
				Phone:   validators.SanitizeString(body.Customer.Phone, 32),
				Address: body.Customer.Address,
			},
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, checkoutsvc.SessionLine{
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
			})
		}

		handle, err := svc.CreateSession(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, handle)
	}
}
