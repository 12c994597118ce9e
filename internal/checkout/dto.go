package checkout

import (
	"github.com/google/uuid"

	"github.com/ivanberrios/storefront-backend/pkg/types"
)

// SessionLine is one requested item in a checkout session.
type SessionLine struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// CustomerInput is the contact snapshot captured when the session starts.
type CustomerInput struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone,omitempty"`
	Address *types.Address `json:"address,omitempty"`
}

// SessionInput carries everything needed to authorize a checkout payment.
// PaymentToken is the card token minted by the storefront's payment form;
// the server never sees raw card data.
type SessionInput struct {
	SessionID    string        `json:"session_id"`
	UserID       *uuid.UUID    `json:"user_id,omitempty"`
	PaymentToken string        `json:"payment_token"`
	Items        []SessionLine `json:"items"`
	Customer     CustomerInput `json:"customer"`
}

// SessionHandle is returned to the storefront once the hold is placed.
type SessionHandle struct {
	CartID     uuid.UUID `json:"cart_id"`
	PaymentID  string    `json:"payment_id"`
	Status     string    `json:"status"`
	TotalCents int       `json:"total_cents"`
}

// CompletionEvent is the provider's asynchronous notice that a payment
// hold was approved.
type CompletionEvent struct {
	EventID         string
	EventType       string
	PaymentID       string
	ProviderOrderID string
	ReferenceID     string
	AmountCents     int
	Currency        string
	Status          string
}
