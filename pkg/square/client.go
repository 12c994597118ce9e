package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/ivanberrios/storefront-backend/pkg/config"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired   = errors.New("square access token is required")
	errWebhookSecretRequired = errors.New("square webhook secret is required")
	errInvalidSquareEnv      = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client exposes Square primitives with centralized auth, logging, idempotency, and error mapping.
type Client struct {
	sdk           *sqclient.Client
	accessToken   string
	environment   string
	webhookSecret string
	locationID    string
	baseURL       string
	logger        *logger.Logger
}

// NewClient initializes the Square wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	baseURL := baseURLs[env]
	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		sdk:           sdk,
		accessToken:   accessToken,
		environment:   env,
		webhookSecret: webhookSecret,
		locationID:    strings.TrimSpace(cfg.LocationID),
		baseURL:       baseURL,
		logger:        logg,
	}

	logg.Info(ctx, "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the Square webhook secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// LocationID returns the configured Square location.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// NewIdempotencyKey returns a unique key for Square operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "sf"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// AuthorizePayment places a delayed-capture hold on the buyer's card.
// The payment stays APPROVED until CompletePayment settles it or
// CancelPayment voids it; Square auto-cancels after the hold window.
func (c *Client) AuthorizePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	req := params.toSquareRequest(c.ensureIdempotencyKey("payment.create", params.IdempotencyKey))
	c.log(ctx, "request", "authorize_payment", map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
	})

	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "authorize_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "authorize payment")
	}

	payment := resp.GetPayment()
	c.log(ctx, "response", "authorize_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

// GetPayment loads the current provider-side state of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	req := &sq.GetPaymentsRequest{PaymentID: paymentID}
	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})

	resp, err := c.sdk.Payments.Get(ctx, req)
	if err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get payment")
	}

	payment := resp.GetPayment()
	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

// CompletePayment captures a previously authorized payment.
func (c *Client) CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	req := &sq.CompletePaymentRequest{PaymentID: paymentID}
	c.log(ctx, "request", "complete_payment", map[string]any{"payment_id": paymentID})

	resp, err := c.sdk.Payments.Complete(ctx, req)
	if err != nil {
		c.log(ctx, "error", "complete_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "complete payment")
	}

	payment := resp.GetPayment()
	c.log(ctx, "response", "complete_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

// CancelPayment voids a payment that was authorized but never captured.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	req := &sq.CancelPaymentsRequest{PaymentID: paymentID}
	c.log(ctx, "request", "cancel_payment", map[string]any{"payment_id": paymentID})

	resp, err := c.sdk.Payments.Cancel(ctx, req)
	if err != nil {
		c.log(ctx, "error", "cancel_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "cancel payment")
	}

	payment := resp.GetPayment()
	c.log(ctx, "response", "cancel_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

// RefundPayment returns money for a captured payment.
func (c *Client) RefundPayment(ctx context.Context, params RefundCreateParams) (*sq.PaymentRefund, error) {
	req := params.toSquareRequest(c.ensureIdempotencyKey("refund.create", params.IdempotencyKey))
	c.log(ctx, "request", "refund_payment", map[string]any{
		"payment_id": params.PaymentID,
		"amount":     params.AmountCents,
	})

	resp, err := c.sdk.Refunds.RefundPayment(ctx, req)
	if err != nil {
		c.log(ctx, "error", "refund_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "refund payment")
	}

	refund := resp.GetRefund()
	c.log(ctx, "response", "refund_payment", map[string]any{
		"refund_id": refund.GetID(),
		"status":    stringValue(refund.GetStatus()),
	})
	return refund, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeProvider
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
