package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	internalorders "github.com/ivanberrios/storefront-backend/internal/orders"
	"github.com/ivanberrios/storefront-backend/pkg/auth"
	"github.com/ivanberrios/storefront-backend/pkg/config"
	"github.com/ivanberrios/storefront-backend/pkg/db/models"
	"github.com/ivanberrios/storefront-backend/pkg/enums"
	"github.com/ivanberrios/storefront-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	listCalls int
}

func (s *stubOrdersRepo) WithTx(*gorm.DB) internalorders.Repository { return s }

func (s *stubOrdersRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (s *stubOrdersRepo) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByPaymentRef(context.Context, string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) Update(context.Context, uuid.UUID, map[string]any) error { return nil }

func (s *stubOrdersRepo) UpdateStatusIf(context.Context, uuid.UUID, enums.OrderStatus, map[string]any) (bool, error) {
	return true, nil
}

func (s *stubOrdersRepo) List(context.Context, pagination.Params, internalorders.ListFilters) (*internalorders.OrderList, error) {
	s.listCalls++
	return &internalorders.OrderList{}, nil
}

func (s *stubOrdersRepo) CountByStatus(context.Context) (map[enums.OrderStatus]int64, error) {
	return map[enums.OrderStatus]int64{}, nil
}

func testRouterConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{
		Secret:          "router-test-secret",
		Issuer:          "storefront-backend-test",
		AccessTokenTTL:  time.Hour,
		ClockSkewLeeway: 30 * time.Second,
	}
	return cfg
}

func mintStaffToken(t *testing.T, cfg *config.Config, role auth.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now().UTC(), auth.AccessTokenPayload{
		Subject: "ops@example.com",
		Role:    role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouterPublicPing(t *testing.T) {
	handler := NewRouter(Deps{Config: testRouterConfig()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRouterHealthLive(t *testing.T) {
	handler := NewRouter(Deps{Config: testRouterConfig()})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Storefront-Env") != "test" {
		t.Fatalf("env header missing")
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	repo := &stubOrdersRepo{}
	handler := NewRouter(Deps{Config: testRouterConfig(), Orders: repo})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d (%s)", rec.Code, rec.Body.String())
	}
	if repo.listCalls != 0 {
		t.Fatalf("repository reached without credentials")
	}
}

func TestRouterAdminAcceptsStaffToken(t *testing.T) {
	cfg := testRouterConfig()
	repo := &stubOrdersRepo{}
	handler := NewRouter(Deps{Config: cfg, Orders: repo})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintStaffToken(t, cfg, auth.RoleAdmin))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with staff token, got %d (%s)", rec.Code, rec.Body.String())
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected one repository call, got %d", repo.listCalls)
	}
}

func TestRouterAdminRejectsTamperedToken(t *testing.T) {
	cfg := testRouterConfig()
	handler := NewRouter(Deps{Config: cfg, Orders: &stubOrdersRepo{}})

	other := testRouterConfig()
	other.JWT.Secret = "a-different-secret"

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintStaffToken(t, other, auth.RoleAdmin))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong signing key, got %d", rec.Code)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	handler := NewRouter(Deps{Config: testRouterConfig()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/does-not-exist", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
