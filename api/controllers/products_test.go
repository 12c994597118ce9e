package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ivanberrios/storefront-backend/internal/products"
	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/pagination"
)

type fakeCatalogRepo struct {
	listCalls  int
	lastParams pagination.Params
	products   []models.Product
	nextCursor string
	product    *models.Product
	err        error
}

func (f *fakeCatalogRepo) WithTx(*gorm.DB) products.Repository { return f }

func (f *fakeCatalogRepo) FindProductByID(context.Context, uuid.UUID) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.product, nil
}

func (f *fakeCatalogRepo) FindVariantDetail(context.Context, uuid.UUID) (*products.VariantDetail, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalogRepo) ListActiveProducts(_ context.Context, params pagination.Params) ([]models.Product, string, error) {
	f.listCalls++
	f.lastParams = params
	return f.products, f.nextCursor, f.err
}

func productRequest(productID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+productID.String(), nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("productId", productID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestListProducts_ForwardsPagination(t *testing.T) {
	repo := &fakeCatalogRepo{
		products:   []models.Product{{ID: uuid.New(), Title: "Hoodie", Active: true}},
		nextCursor: "cursor-2",
	}
	handler := ListProducts(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=5&cursor=cursor-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if repo.lastParams.Limit != 5 || repo.lastParams.Cursor != "cursor-1" {
		t.Fatalf("pagination not forwarded: %+v", repo.lastParams)
	}
}

func TestListProducts_RejectsBadLimit(t *testing.T) {
	repo := &fakeCatalogRepo{}
	handler := ListProducts(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=banana", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if repo.listCalls != 0 {
		t.Fatalf("repository should not be called, got %d calls", repo.listCalls)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := &fakeCatalogRepo{err: gorm.ErrRecordNotFound}
	handler := GetProduct(repo, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, productRequest(uuid.New()))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetProduct_HidesInactive(t *testing.T) {
	repo := &fakeCatalogRepo{product: &models.Product{ID: uuid.New(), Title: "Retired", Active: false}}
	handler := GetProduct(repo, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, productRequest(repo.product.ID))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for inactive product, got %d", rec.Code)
	}
}
