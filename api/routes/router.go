package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kowshalya-Eswar/agrofarm/api/controllers"
	webhookcontrollers "github.com/Kowshalya-Eswar/agrofarm/api/controllers/webhooks"
	"github.com/Kowshalya-Eswar/agrofarm/api/middleware"
	cartsvc "github.com/Kowshalya-Eswar/agrofarm/internal/cart"
	ordersvc "github.com/Kowshalya-Eswar/agrofarm/internal/orders"
	productsvc "github.com/Kowshalya-Eswar/agrofarm/internal/products"
	"github.com/Kowshalya-Eswar/agrofarm/internal/reconciler"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/config"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/square"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	healthDeps map[string]controllers.Pinger,
	productService *productsvc.Service,
	cartService *cartsvc.Service,
	orderService *ordersvc.Service,
	reconcilerService *reconciler.Service,
	squareClient *square.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, healthDeps))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(reconcilerService, squareClient, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(productService, logg))
		r.Get("/{productId}", controllers.ProductGet(productService, logg))
		r.Get("/{productId}/stock", controllers.ProductStock(cartService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Post("/items/remove", controllers.CartRemoveItem(cartService, logg))
			r.Post("/clear", controllers.CartClear(cartService, logg))
			r.Post("/restore", controllers.CartRestore(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(orderService, logg))
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/{reference}", controllers.OrderGet(orderService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Post("/products", controllers.ProductCreate(productService, logg))
	})

	return r
}
