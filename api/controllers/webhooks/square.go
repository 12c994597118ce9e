package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ivanberrios/storefront-backend/api/responses"
	checkoutsvc "github.com/ivanberrios/storefront-backend/internal/checkout"
	"github.com/ivanberrios/storefront-backend/pkg/config"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
)

const signatureHeader = "X-Square-Hmacsha256-Signature"

type completionHandler interface {
	HandleCompletionEvent(ctx context.Context, event checkoutsvc.CompletionEvent) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// squarePaymentEvent mirrors the slice of Square's webhook envelope the
// completion flow needs.
type squarePaymentEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			Payment *squarePayment `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

type squarePayment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	AmountMoney struct {
		Amount   int    `json:"amount"`
		Currency string `json:"currency"`
	} `json:"amount_money"`
}

// SquareWebhook ingests payment lifecycle events from Square. Authorized
// payments become pending orders; everything else is acknowledged and dropped.
func SquareWebhook(svc completionHandler, cfg *config.Config, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := verifySignature(r, payload, cfg, logg); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event squarePaymentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		eventID := strings.TrimSpace(event.EventID)
		if eventID == "" {
			eventID = event.Data.ID
		}
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id required"))
			return
		}

		payment := event.Data.Object.Payment
		if !isAuthorizedPaymentEvent(event.Type, payment) {
			if logg != nil {
				logg.Info(ctx, fmt.Sprintf("square event %s ignored (%s)", eventID, event.Type))
			}
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		completion := checkoutsvc.CompletionEvent{
			EventID:         eventID,
			EventType:       event.Type,
			PaymentID:       payment.ID,
			ProviderOrderID: payment.OrderID,
			ReferenceID:     payment.ReferenceID,
			AmountCents:     payment.AmountMoney.Amount,
			Currency:        payment.AmountMoney.Currency,
			Status:          payment.Status,
		}
		if err := svc.HandleCompletionEvent(ctx, completion); err != nil {
			// Drop the redis mark so the provider retry is not a silent no-op.
			_ = guard.Delete(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("square event %s processed", eventID))
		}
		responses.WriteSuccess(w, nil)
	}
}

func verifySignature(r *http.Request, payload []byte, cfg *config.Config, logg *logger.Logger) error {
	secret := ""
	allowUnsigned := false
	prod := false
	if cfg != nil {
		secret = cfg.Square.WebhookSecret
		allowUnsigned = cfg.Checkout.AllowUnsignedWebhooks
		prod = cfg.App.IsProd()
	}

	header := strings.TrimSpace(r.Header.Get(signatureHeader))
	if validSquareSignature(payload, secret, header) {
		return nil
	}

	if allowUnsigned && !prod {
		if logg != nil {
			logg.Warn(r.Context(), "square webhook accepted without valid signature")
		}
		return nil
	}
	if header == "" {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "square signature missing")
	}
	return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "invalid square signature")
}

func validSquareSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

// Delayed-capture holds arrive as payment.created/payment.updated with
// status APPROVED. COMPLETED shows up only after capture settles the hold,
// at which point the order already exists.
func isAuthorizedPaymentEvent(eventType string, payment *squarePayment) bool {
	if payment == nil {
		return false
	}
	switch eventType {
	case "payment.created", "payment.updated":
	default:
		return false
	}
	switch strings.ToUpper(payment.Status) {
	case "APPROVED", "AUTHORIZED":
		return true
	}
	return false
}
