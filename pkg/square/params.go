package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// authorizationHold is how long Square keeps an uncaptured payment alive
// before applying delayAction. Card-not-present defaults to 7 days; we pin
// it so a sandbox/production drift can't change the window under us.
const (
	authorizationHold = "P7D"
	delayAction       = "CANCEL"
)

// PaymentCreateParams groups the inputs for authorizing a card payment.
// The resulting payment is always a delayed-capture hold: CompletePayment
// settles it, CancelPayment voids it.
type PaymentCreateParams struct {
	SourceID          string
	VerificationToken string
	LocationID        string
	CustomerID        string
	ReferenceID       string
	AmountCents       int64
	Currency          string
	BuyerEmail        string
	BuyerPhone        string
	Note              string
	IdempotencyKey    string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := false
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       strings.TrimSpace(p.SourceID),
		AmountMoney:    moneyPtr(p.AmountCents, p.Currency),
		Autocomplete:   &autocomplete,
		DelayDuration:  ptrString(authorizationHold),
		DelayAction:    ptrString(delayAction),
	}
	if trimmed := strings.TrimSpace(p.LocationID); trimmed != "" {
		req.LocationID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.CustomerID); trimmed != "" {
		req.CustomerID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.VerificationToken); trimmed != "" {
		req.VerificationToken = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.BuyerEmail); trimmed != "" {
		req.BuyerEmailAddress = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.BuyerPhone); trimmed != "" {
		req.BuyerPhoneNumber = ptrString("+1" + trimmed)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	return req
}

// RefundCreateParams groups the inputs for refunding a captured payment.
type RefundCreateParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundCreateParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		PaymentID:      ptrString(p.PaymentID),
	}
	if p.AmountCents > 0 {
		req.AmountMoney = moneyPtr(p.AmountCents, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
