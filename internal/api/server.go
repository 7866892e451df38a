package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Server связывает HTTP-маршруты с сервисами магазина.
type Server struct {
	carts          *cart.Service
	catalog        *catalog.Service
	checkout       checkout.Workflow
	orders         domain.OrderRepository
	timeline       domain.TimelineRepository
	idempotency    domain.IdempotencyRepository
	idempotencyTTL time.Duration
	logger         *log.Entry
}

// Options задаёт необязательные зависимости HTTP-сервера.
type Options struct {
	Timeline       domain.TimelineRepository
	Idempotency    domain.IdempotencyRepository
	IdempotencyTTL time.Duration
	Logger         *log.Entry
}

// NewServer конструирует HTTP-слой поверх сервисов.
func NewServer(
	carts *cart.Service,
	catalogSvc *catalog.Service,
	checkoutWf checkout.Workflow,
	orders domain.OrderRepository,
	opts Options,
) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "api")
	}
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return &Server{
		carts:          carts,
		catalog:        catalogSvc,
		checkout:       checkoutWf,
		orders:         orders,
		timeline:       opts.Timeline,
		idempotency:    opts.Idempotency,
		idempotencyTTL: ttl,
		logger:         logger,
	}
}

// Router собирает chi-маршрутизатор со всеми ручками магазина.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/products", s.createProduct)
		r.Get("/products", s.searchProducts)
		r.Get("/products/{id}", s.getProduct)
		r.Post("/products/{id}/restock", s.restockProduct)
		r.Get("/sellers/{id}/products", s.listSellerProducts)

		r.Get("/buyers/{id}/cart", s.getCart)
		r.Post("/buyers/{id}/cart/items", s.addCartItem)
		r.Put("/buyers/{id}/cart/items/{productID}", s.updateCartItem)
		r.Delete("/buyers/{id}/cart/items/{productID}", s.removeCartItem)
		r.Delete("/buyers/{id}/cart", s.clearCart)

		r.Post("/checkout", s.placeOrder)
		r.Get("/orders/{id}", s.getOrder)
		r.Get("/buyers/{id}/orders", s.listBuyerOrders)
		r.Get("/buyers/{id}/timeline", s.listBuyerTimeline)
	})

	return r
}
