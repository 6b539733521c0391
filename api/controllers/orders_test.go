package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Kowshalya-Eswar/agrofarm/api/middleware"
	ordersvc "github.com/Kowshalya-Eswar/agrofarm/internal/orders"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/db/models"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
)

type stubOrderService struct {
	result  *ordersvc.CreateOrderResult
	order   *models.Order
	list    []models.Order
	err     error
	userID  uuid.UUID
	isAdmin bool
}

func (s *stubOrderService) CreateOrder(ctx context.Context, userID uuid.UUID, input ordersvc.CreateOrderInput) (*ordersvc.CreateOrderResult, error) {
	s.userID = userID
	return s.result, s.err
}

func (s *stubOrderService) Get(ctx context.Context, userID uuid.UUID, isAdmin bool, reference string) (*models.Order, error) {
	s.userID = userID
	s.isAdmin = isAdmin
	return s.order, s.err
}

func (s *stubOrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	s.userID = userID
	return s.list, s.err
}

func checkoutBody(productID uuid.UUID) string {
	return `{
		"items":[{"product_id":"` + productID.String() + `","qty":2}],
		"shipping_address":{"line1":"12 Farm Rd","city":"Salem","state":"TN","postal_code":"636001"},
		"source_id":"cnon:card-ok"
	}`
}

func TestOrderCreateSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrderService{result: &ordersvc.CreateOrderResult{Reference: "pay-ref-1", TotalCents: 40000}}
	handler := OrderCreate(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(checkoutBody(uuid.New())))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.userID != userID {
		t.Fatalf("service saw wrong user: %s", svc.userID)
	}

	var envelope struct {
		Data ordersvc.CreateOrderResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Reference != "pay-ref-1" {
		t.Fatalf("unexpected reference: %s", envelope.Data.Reference)
	}
}

func TestOrderCreateRequiresAuth(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(checkoutBody(uuid.New())))
	resp := httptest.NewRecorder()
	OrderCreate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOrderCreateRejectsEmptyItems(t *testing.T) {
	svc := &stubOrderService{}
	body := `{"items":[],"shipping_address":{"line1":"12 Farm Rd","city":"Salem","state":"TN","postal_code":"636001"},"source_id":"cnon:card-ok"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	OrderCreate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestOrderCreateSurfacesStockConflict(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeStockConflict, "stock changed, please retry")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(checkoutBody(uuid.New())))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	OrderCreate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestOrderGetForwardsAdminFlag(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrderService{order: &models.Order{Reference: "pay-ref-1", UserID: userID}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/pay-ref-1", nil)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithIsAdmin(ctx, true)
	req = req.WithContext(ctx)
	req = withURLParam(req, "reference", "pay-ref-1")

	resp := httptest.NewRecorder()
	OrderGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !svc.isAdmin {
		t.Fatalf("admin flag not forwarded to service")
	}
}

func TestOrderListRequiresValidIdentity(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "not-a-uuid"))
	resp := httptest.NewRecorder()
	OrderList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
