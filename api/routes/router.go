package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hpratama/resellhub-backend/api/controllers"
	"github.com/hpratama/resellhub-backend/api/middleware"
	"github.com/hpratama/resellhub-backend/internal/orders"
	"github.com/hpratama/resellhub-backend/internal/resellerstock"
	"github.com/hpratama/resellhub-backend/internal/returns"
	"github.com/hpratama/resellhub-backend/internal/shipping"
	"github.com/hpratama/resellhub-backend/internal/stock"
	"github.com/hpratama/resellhub-backend/pkg/config"
	"github.com/hpratama/resellhub-backend/pkg/db"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	"github.com/hpratama/resellhub-backend/pkg/logger"
	"github.com/hpratama/resellhub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	shippingSvc shipping.Service,
	returnsSvc returns.Service,
	stockSvc stock.Service,
	resellerStockSvc resellerstock.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/reseller/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorRoleReseller, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.CreateOrder(ordersSvc, logg))
				r.Get("/", controllers.ListResellerOrders(ordersSvc, logg))
				r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			})

			r.Get("/stock", controllers.ResellerStockList(resellerStockSvc, logg))

			r.Route("/shipping", func(r chi.Router) {
				r.Get("/", controllers.ListResellerShipments(shippingSvc, logg))
				r.Get("/{shipmentId}", controllers.ShipmentDetail(shippingSvc, logg))
				r.Put("/{shipmentId}/validate", controllers.ConfirmReceipt(shippingSvc, logg))
			})

			r.Route("/returns", func(r chi.Router) {
				r.Post("/", controllers.CreateReturn(returnsSvc, logg))
				r.Get("/", controllers.ListResellerReturns(returnsSvc, logg))
				r.Get("/{returnId}", controllers.ReturnDetail(returnsSvc, logg))
			})
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(ordersSvc, logg))
				r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
				r.Put("/{orderId}/decision", controllers.OrderDecision(ordersSvc, logg))
			})

			r.Route("/shipping", func(r chi.Router) {
				r.Get("/", controllers.AdminListShipments(shippingSvc, logg))
				r.Get("/{shipmentId}", controllers.ShipmentDetail(shippingSvc, logg))
				r.Put("/{shipmentId}", controllers.UpdateShipment(shippingSvc, logg))
				r.Put("/{shipmentId}/status", controllers.SetShipmentStatus(shippingSvc, logg))
			})

			r.Route("/returns", func(r chi.Router) {
				r.Get("/", controllers.AdminListReturns(returnsSvc, logg))
				r.Get("/{returnId}", controllers.ReturnDetail(returnsSvc, logg))
				r.Put("/{returnId}/decision", controllers.ReturnDecision(returnsSvc, logg))
			})

			r.Route("/stock", func(r chi.Router) {
				r.Get("/{productId}", controllers.WarehouseStockDetail(stockSvc, logg))
				r.Post("/{productId}/restock", controllers.Restock(stockSvc, logg))
			})
		})
	})

	return r
}
