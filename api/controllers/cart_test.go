package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	pkgerrors "github.com/ivanberrios/storefront-backend/pkg/errors"
)

type fakeCartService struct {
	getCalls    int
	setCalls    int
	lastSession string
	lastVariant uuid.UUID
	lastQty     int
	out         *models.Cart
	err         error
}

func (f *fakeCartService) GetOrCreate(_ context.Context, sessionID string, _ *uuid.UUID) (*models.Cart, error) {
	f.getCalls++
	f.lastSession = sessionID
	return f.out, f.err
}

func (f *fakeCartService) SetItem(_ context.Context, sessionID string, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	f.setCalls++
	f.lastSession = sessionID
	f.lastVariant = variantID
	f.lastQty = quantity
	return f.out, f.err
}

func (f *fakeCartService) Convert(context.Context, *gorm.DB, uuid.UUID) error {
	return nil
}

func (f *fakeCartService) AbandonStale(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func TestGetCart_Success(t *testing.T) {
	svc := &fakeCartService{out: &models.Cart{ID: uuid.New(), SessionID: "sess-1"}}
	handler := GetCart(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Cart-Session", "sess-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.getCalls != 1 || svc.lastSession != "sess-1" {
		t.Fatalf("service not called with session: calls=%d session=%q", svc.getCalls, svc.lastSession)
	}
}

func TestGetCart_RequiresSessionHeader(t *testing.T) {
	svc := &fakeCartService{}
	handler := GetCart(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.getCalls != 0 {
		t.Fatalf("service should not be called, got %d calls", svc.getCalls)
	}
}

func TestSetCartItem_ForwardsQuantity(t *testing.T) {
	variantID := uuid.New()
	svc := &fakeCartService{out: &models.Cart{ID: uuid.New()}}
	handler := SetCartItem(svc, nil)

	body := `{"variant_id":"` + variantID.String() + `","quantity":3}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cart-Session", "sess-2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastVariant != variantID || svc.lastQty != 3 {
		t.Fatalf("unexpected call: variant=%s qty=%d", svc.lastVariant, svc.lastQty)
	}
}

func TestSetCartItem_RejectsNegativeQuantity(t *testing.T) {
	svc := &fakeCartService{}
	handler := SetCartItem(svc, nil)

	body := `{"variant_id":"` + uuid.NewString() + `","quantity":-1}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cart-Session", "sess-3")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.setCalls != 0 {
		t.Fatalf("service should not be called, got %d calls", svc.setCalls)
	}
}

func TestSetCartItem_PropagatesNotFound(t *testing.T) {
	svc := &fakeCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")}
	handler := SetCartItem(svc, nil)

	body := `{"variant_id":"` + uuid.NewString() + `","quantity":1}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cart-Session", "sess-4")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
