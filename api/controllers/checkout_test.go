package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	checkoutsvc "github.com/ivanberrios/storefront-backend/internal/checkout"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
)

type fakeCheckoutService struct {
	calls int
	last  checkoutsvc.SessionInput
	out   *checkoutsvc.SessionHandle
	err   error
}

func (f *fakeCheckoutService) CreateSession(_ context.Context, input checkoutsvc.SessionInput) (*checkoutsvc.SessionHandle, error) {
	f.calls++
	f.last = input
	return f.out, f.err
}

func (f *fakeCheckoutService) HandleCompletionEvent(context.Context, checkoutsvc.CompletionEvent) error {
	return nil
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	variantID := uuid.New()
	svc := &fakeCheckoutService{out: &checkoutsvc.SessionHandle{
		CartID:     uuid.New(),
		PaymentID:  "pay_auth_1",
		Status:     "APPROVED",
		TotalCents: 4500,
	}}
	handler := CreateCheckoutSession(svc, nil)

	body := `{"payment_token":"cnon:card-nonce-ok",` +
		`"items":[{"variant_id":"` + variantID.String() + `","quantity":2}],` +
		`"customer":{"name":"Dana Ortiz","email":"Dana@Example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cart-Session", "sess-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected one service call, got %d", svc.calls)
	}
	if svc.last.SessionID != "sess-abc" {
		t.Fatalf("session id not forwarded: %q", svc.last.SessionID)
	}
	if svc.last.PaymentToken != "cnon:card-nonce-ok" {
		t.Fatalf("payment token not forwarded: %q", svc.last.PaymentToken)
	}
	if svc.last.Customer.Email != "dana@example.com" {
		t.Fatalf("email not normalized: %q", svc.last.Customer.Email)
	}
	if len(svc.last.Items) != 1 || svc.last.Items[0].VariantID != variantID || svc.last.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", svc.last.Items)
	}

	var envelope struct {
		Data struct {
			PaymentID string `json:"payment_id"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PaymentID != "pay_auth_1" || envelope.Data.Status != "APPROVED" {
		t.Fatalf("unexpected payment handle: %+v", envelope.Data)
	}
}

func TestCreateCheckoutSession_RejectsMissingPaymentToken(t *testing.T) {
	svc := &fakeCheckoutService{}
	handler := CreateCheckoutSession(svc, nil)

	body := `{"items":[{"variant_id":"` + uuid.NewString() + `","quantity":1}],` +
		`"customer":{"name":"Dana","email":"dana@example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be called without a payment token")
	}
}

func TestCreateCheckoutSession_RejectsEmptyItems(t *testing.T) {
	svc := &fakeCheckoutService{}
	handler := CreateCheckoutSession(svc, nil)

	body := `{"items":[],"customer":{"name":"Dana","email":"dana@example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be called on invalid body")
	}
}

func TestCreateCheckoutSession_RejectsBadEmail(t *testing.T) {
	svc := &fakeCheckoutService{}
	handler := CreateCheckoutSession(svc, nil)

	body := `{"items":[{"variant_id":"` + uuid.NewString() + `","quantity":1}],` +
		`"customer":{"name":"Dana","email":"not-an-email"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCreateCheckoutSession_PropagatesOutOfStock(t *testing.T) {
	svc := &fakeCheckoutService{err: pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock")}
	handler := CreateCheckoutSession(svc, nil)

	body := `{"payment_token":"cnon:card-nonce-ok",` +
		`"items":[{"variant_id":"` + uuid.NewString() + `","quantity":5}],` +
		`"customer":{"name":"Dana","email":"dana@example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
}
