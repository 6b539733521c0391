package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kowshalya-Eswar/agrofarm/api/responses"
	"github.com/Kowshalya-Eswar/agrofarm/api/validators"
	cartsvc "github.com/Kowshalya-Eswar/agrofarm/internal/cart"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
)

type cartService interface {
	AddToCart(ctx context.Context, productID, cartID string, qty int64) error
	RemoveFromCart(ctx context.Context, productID, cartID string, qty int64) error
	ClearCart(ctx context.Context, cartID string) error
	RestoreCart(ctx context.Context, cartID string, items []cartsvc.RestoreItem) error
	GetStock(ctx context.Context, productID string) (int64, error)
}

// cart_id is constrained to uuid form: the ids become segments of the
// colon-delimited hold keys, so free-form values would defeat key parsing.
type cartMutationRequest struct {
	CartID    string `json:"cart_id" validate:"required,uuid"`
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int64  `json:"qty" validate:"required,gt=0"`
}

type cartRestoreRequest struct {
	CartID string                `json:"cart_id" validate:"required,uuid"`
	Items  []cartsvc.RestoreItem `json:"items" validate:"required,min=1,dive"`
}

type stockResponse struct {
	ProductID string `json:"product_id"`
	Available int64  `json:"available"`
}

// CartAddItem reserves quantity for a cart.
func CartAddItem(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload cartMutationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartID(ctx, payload.CartID)
		}
		if err := svc.AddToCart(ctx, payload.ProductID, payload.CartID, payload.Qty); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reserved"})
	}
}

// CartRemoveItem returns quantity from a cart's hold to the counter.
func CartRemoveItem(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload cartMutationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartID(ctx, payload.CartID)
		}
		if err := svc.RemoveFromCart(ctx, payload.ProductID, payload.CartID, payload.Qty); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}

type cartClearRequest struct {
	CartID string `json:"cart_id" validate:"required,uuid"`
}

// CartClear drops a cart's holds without touching the stock counter. Used
// after an order commits: authoritative stock already absorbed the decrement.
func CartClear(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload cartClearRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartID(ctx, payload.CartID)
		}
		if err := svc.ClearCart(ctx, payload.CartID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// CartRestore abandons a cart: holds are dropped and their quantities
// returned to the stock counter.
func CartRestore(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload cartRestoreRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartID(ctx, payload.CartID)
		}
		if err := svc.RestoreCart(ctx, payload.CartID, payload.Items); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "restored"})
	}
}

// ProductStock reports the reservable quantity for a product. This is a
// display projection: eventually consistent with the authoritative stock.
func ProductStock(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		productID := chi.URLParam(r, "productId")
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id required"))
			return
		}

		available, err := svc.GetStock(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stockResponse{ProductID: productID, Available: available})
	}
}
