package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keydeck/keydeck-backend/api/controllers"
	"github.com/keydeck/keydeck-backend/api/middleware"
	"github.com/keydeck/keydeck-backend/internal/carts"
	"github.com/keydeck/keydeck-backend/internal/orders"
	"github.com/keydeck/keydeck-backend/internal/stock"
	"github.com/keydeck/keydeck-backend/internal/stores"
	"github.com/keydeck/keydeck-backend/internal/wallet"
	"github.com/keydeck/keydeck-backend/pkg/config"
	"github.com/keydeck/keydeck-backend/pkg/db"
	"github.com/keydeck/keydeck-backend/pkg/logger"
	"github.com/keydeck/keydeck-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis redis.Pinger

	Carts   carts.Service
	Orders  orders.Service
	Stock   stock.Service
	Stores  stores.Service
	Wallet  wallet.Service
	Retrier controllers.WaitingStockRetrier
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/stores/resolve", controllers.StoreResolveGuild(deps.Stores, logg))

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", controllers.CartUpsert(deps.Carts, logg))
			r.Route("/{cartId}", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Carts, logg))
				r.Post("/touch", controllers.CartTouch(deps.Carts, logg))
				r.Put("/quantity", controllers.CartSetQuantity(deps.Carts, logg))
				r.Put("/coupon", controllers.CartApplyCoupon(deps.Carts, logg))
				r.Delete("/coupon", controllers.CartClearCoupon(deps.Carts, logg))
				r.Post("/checkout", controllers.Checkout(deps.Orders, logg))
				r.Post("/confirm", controllers.ConfirmCart(deps.Orders, logg))
				r.Post("/cancel", controllers.CancelCart(deps.Orders, logg))
			})
		})

		r.Get("/orders/{orderId}", controllers.OrderDetail(deps.Orders, logg))

		r.Route("/stock", func(r chi.Router) {
			r.Post("/", controllers.StockUpload(deps.Stock, logg))
			r.Get("/count", controllers.StockCount(deps.Stock, logg))
		})

		r.Get("/wallets/{userId}", controllers.WalletAccount(deps.Wallet, logg))
		r.Get("/wallets/{userId}/entries", controllers.WalletEntries(deps.Wallet, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Post("/stock/retry-sweep", controllers.StockRetrySweep(deps.Retrier, logg))
		})
	})

	return r
}
