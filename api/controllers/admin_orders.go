package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/api/responses"
	"github.com/ivanberrios/storefront-backend/api/validators"
	"github.com/ivanberrios/storefront-backend/internal/capture"
	internalorders "github.com/ivanberrios/storefront-backend/internal/orders"
	"github.com/ivanberrios/storefront-backend/internal/transitions"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/pagination"
)

type orderReasonRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required,max=32"`
}

type orderTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,min=4,max=64"`
}

// AdminListOrders returns the paginated order list with optional filters.
func AdminListOrders(repo internalorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := parseOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := repo.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders"))
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// AdminGetOrder returns one order with its line items.
func AdminGetOrder(repo internalorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := repo.FindByID(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order"))
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminOrderStats returns order counts grouped by status for the dashboard.
func AdminOrderStats(repo internalorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		counts, err := repo.CountByStatus(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders"))
			return
		}

		responses.WriteSuccess(w, map[string]any{"counts": counts})
	}
}

// AdminCaptureOrder commits stock and completes the authorized payment.
func AdminCaptureOrder(svc capture.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "capture service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CapturePayment(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminCancelOrder cancels the order, voiding or restocking as its status requires.
func AdminCancelOrder(svc transitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transition service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body, err := decodeOptionalReason(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orderID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminRefundOrder refunds a paid order and returns its stock to the ledger.
func AdminRefundOrder(svc transitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transition service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body, err := decodeOptionalReason(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Refund(r.Context(), orderID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminUpdateOrderStatus applies a direct fulfillment transition.
func AdminUpdateOrderStatus(svc transitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transition service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body orderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target := enums.OrderStatus(strings.ToUpper(strings.TrimSpace(body.Status)))
		if !target.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{
				"status": body.Status,
			}))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orderID, target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminAttachTracking records the shipment tracking number, advancing
// processing orders to shipped.
func AdminAttachTracking(svc transitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transition service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body orderTrackingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AttachTracking(r.Context(), orderID, validators.SanitizeString(body.TrackingNumber, 64))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	return orderID, nil
}

func decodeOptionalReason(r *http.Request) (orderReasonRequest, error) {
	var body orderReasonRequest
	if r.Body == nil || r.ContentLength == 0 {
		return body, nil
	}
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return body, err
	}
	body.Reason = validators.SanitizeString(body.Reason, 500)
	return body, nil
}

func parseOrderFilters(r *http.Request) (internalorders.ListFilters, error) {
	filters := internalorders.ListFilters{
		Query: validators.SanitizeString(r.URL.Query().Get("q"), 120),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := enums.OrderStatus(strings.ToUpper(raw))
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{
				"status": raw,
			})
		}
		filters.Status = &status
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("date_from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "date_from must be RFC3339")
		}
		filters.DateFrom = &from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date_to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "date_to must be RFC3339")
		}
		filters.DateTo = &to
	}

	return filters, nil
}
