package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	productsvc "github.com/Kowshalya-Eswar/agrofarm/internal/products"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/db/models"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
)

// withURLParam injects a chi route parameter for handlers tested outside a
// router.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type stubProductService struct {
	product *models.Product
	list    []models.Product
	err     error

	created *productsvc.CreateInput
	gotID   uuid.UUID
}

func (s *stubProductService) Create(ctx context.Context, input productsvc.CreateInput) (*models.Product, error) {
	s.created = &input
	return s.product, s.err
}

func (s *stubProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	s.gotID = id
	return s.product, s.err
}

func (s *stubProductService) List(ctx context.Context) ([]models.Product, error) {
	return s.list, s.err
}

func TestProductCreateSuccess(t *testing.T) {
	product := &models.Product{ID: uuid.New(), Name: "Basmati Rice 5kg", PriceCents: 89900}
	svc := &stubProductService{product: product}

	body := `{"name":"Basmati Rice 5kg","price_cents":89900,"stock":40}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/products", strings.NewReader(body))
	resp := httptest.NewRecorder()
	ProductCreate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created == nil || svc.created.Stock != 40 {
		t.Fatalf("unexpected create input: %+v", svc.created)
	}
}

func TestProductCreateRejectsBadInput(t *testing.T) {
	svc := &stubProductService{}
	body := `{"name":"x","price_cents":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/products", strings.NewReader(body))
	resp := httptest.NewRecorder()
	ProductCreate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.created != nil {
		t.Fatalf("service should not be called on invalid payload")
	}
}

func TestProductGetParsesID(t *testing.T) {
	id := uuid.New()
	svc := &stubProductService{product: &models.Product{ID: id, Name: "Turmeric Powder"}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id.String(), nil)
	req = withURLParam(req, "productId", id.String())
	resp := httptest.NewRecorder()
	ProductGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotID != id {
		t.Fatalf("service saw wrong id: %s", svc.gotID)
	}
}

func TestProductGetRejectsMalformedID(t *testing.T) {
	svc := &stubProductService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	req = withURLParam(req, "productId", "not-a-uuid")
	resp := httptest.NewRecorder()
	ProductGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductGetNotFound(t *testing.T) {
	svc := &stubProductService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id.String(), nil)
	req = withURLParam(req, "productId", id.String())
	resp := httptest.NewRecorder()
	ProductGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestProductListReturnsCatalog(t *testing.T) {
	svc := &stubProductService{list: []models.Product{{ID: uuid.New(), Name: "Groundnut Oil 1L"}}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	ProductList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data []models.Product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected one product, got %d", len(envelope.Data))
	}
}
