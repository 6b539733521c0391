package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	cartsvc "github.com/Kowshalya-Eswar/agrofarm/internal/cart"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
)

type stubCartService struct {
	addErr     error
	removeErr  error
	clearErr   error
	restoreErr error
	stock      int64
	stockErr   error

	addCalls     int
	restoreItems []cartsvc.RestoreItem
}

func (s *stubCartService) AddToCart(ctx context.Context, productID, cartID string, qty int64) error {
	s.addCalls++
	return s.addErr
}

func (s *stubCartService) RemoveFromCart(ctx context.Context, productID, cartID string, qty int64) error {
	return s.removeErr
}

func (s *stubCartService) ClearCart(ctx context.Context, cartID string) error {
	return s.clearErr
}

func (s *stubCartService) RestoreCart(ctx context.Context, cartID string, items []cartsvc.RestoreItem) error {
	s.restoreItems = items
	return s.restoreErr
}

func (s *stubCartService) GetStock(ctx context.Context, productID string) (int64, error) {
	return s.stock, s.stockErr
}

const testCartID = "4f9d3a8e-52c1-4b0d-8f6e-2a7b9c0d1e2f"

func TestCartAddItemSuccess(t *testing.T) {
	svc := &stubCartService{}
	handler := CartAddItem(svc, nil)

	body := `{"cart_id":"` + testCartID + `","product_id":"` + "d2b2e6a0-7a36-4b57-9f7a-01f2f1a2b3c4" + `","qty":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.addCalls != 1 {
		t.Fatalf("expected one service call, got %d", svc.addCalls)
	}
}

func TestCartAddItemRejectsBadPayload(t *testing.T) {
	cases := map[string]string{
		"missing cart":       `{"product_id":"d2b2e6a0-7a36-4b57-9f7a-01f2f1a2b3c4","qty":2}`,
		"zero qty":           `{"cart_id":"` + testCartID + `","product_id":"d2b2e6a0-7a36-4b57-9f7a-01f2f1a2b3c4","qty":0}`,
		"product not a uuid": `{"cart_id":"` + testCartID + `","product_id":"tomatoes","qty":1}`,
		// Hold keys are colon-delimited, so free-form cart ids are rejected
		// before they can produce unparseable keys.
		"cart not a uuid": `{"cart_id":"basket:one","product_id":"d2b2e6a0-7a36-4b57-9f7a-01f2f1a2b3c4","qty":1}`,
		"malformed json":  `{"cart_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubCartService{}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
			resp := httptest.NewRecorder()
			CartAddItem(svc, nil).ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
			if svc.addCalls != 0 {
				t.Fatalf("service should not be called on invalid payload")
			}
		})
	}
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	svc := &stubCartService{addErr: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")}
	body := `{"cart_id":"` + testCartID + `","product_id":"d2b2e6a0-7a36-4b57-9f7a-01f2f1a2b3c4","qty":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), string(pkgerrors.CodeInsufficientStock)) {
		t.Fatalf("expected insufficient stock code in body: %s", resp.Body.String())
	}
}

func TestCartRestorePassesItems(t *testing.T) {
	svc := &stubCartService{}
	body := `{"cart_id":"` + testCartID + `","items":[{"product_id":"d2b2e6a0-7a36-4b57-9f7a-01f2f1a2b3c4","qty":3}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/restore", strings.NewReader(body))
	resp := httptest.NewRecorder()
	CartRestore(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.restoreItems) != 1 || svc.restoreItems[0].Qty != 3 {
		t.Fatalf("unexpected restore items: %+v", svc.restoreItems)
	}
}

func TestProductStockReadsURLParam(t *testing.T) {
	svc := &stubCartService{stock: 7}

	r := chi.NewRouter()
	r.Get("/api/v1/products/{productId}/stock", ProductStock(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/prod-1/stock", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data stockResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ProductID != "prod-1" || envelope.Data.Available != 7 {
		t.Fatalf("unexpected stock response: %+v", envelope.Data)
	}
}
