package orders

import (
	"fmt"
	"time"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
)

// InvalidTransitionDetails explains a rejected status change so admin tooling
// can surface the legal follow-ups instead of a bare 422.
type InvalidTransitionDetails struct {
	Current enums.OrderStatus   `json:"current"`
	Target  enums.OrderStatus   `json:"target"`
	Allowed []enums.OrderStatus `json:"allowed"`
}

// TransitionUpdates validates the move from the order's current status to
// target and returns the column updates that perform it. Lifecycle
// timestamps are set when first reached and never cleared, so replaying a
// path through the machine cannot rewrite history.
func TransitionUpdates(order *models.Order, target enums.OrderStatus, now time.Time) (map[string]any, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", target))
	}

	current := order.Status.Normalize()
	target = target.Normalize()
	if !current.CanTransitionTo(target) {
		return nil, pkgerrors.New(
			pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot transition order from %s to %s", current, target),
		).WithDetails(InvalidTransitionDetails{
			Current: current,
			Target:  target,
			Allowed: current.Successors(),
		})
	}

	updates := map[string]any{"status": target}
	switch target {
	case enums.OrderStatusPaid:
		if order.PaidAt == nil {
			updates["paid_at"] = now
		}
	case enums.OrderStatusShipped:
		if order.ShippedAt == nil {
			updates["shipped_at"] = now
		}
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
		}
	}
	return updates, nil
}

// ApplyTransition mirrors TransitionUpdates onto the in-memory model so the
// caller can keep using the loaded aggregate after persisting the updates.
func ApplyTransition(order *models.Order, target enums.OrderStatus, now time.Time) {
	target = target.Normalize()
	order.Status = target
	switch target {
	case enums.OrderStatusPaid:
		if order.PaidAt == nil {
			ts := now
			order.PaidAt = &ts
		}
	case enums.OrderStatusShipped:
		if order.ShippedAt == nil {
			ts := now
			order.ShippedAt = &ts
		}
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			ts := now
			order.DeliveredAt = &ts
		}
	}
}
