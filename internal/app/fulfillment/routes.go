package fulfillment

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/config"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/handlers/account/create"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/handlers/account/read"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/handlers/admin/accountlist"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/handlers/admin/deliver"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/handlers/admin/purchaselist"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/handlers/health"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/handlers/webhook/stripewebhook"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/lib/jwt"
	accountservice "github.com/magabrotheeeer/mealplan-fulfillment/internal/services/account"
	deliveryservice "github.com/magabrotheeeer/mealplan-fulfillment/internal/services/delivery"
	fulfillmentservice "github.com/magabrotheeeer/mealplan-fulfillment/internal/services/fulfillment"
	"github.com/magabrotheeeer/mealplan-fulfillment/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	db *repository.Storage,
	fulfillmentService *fulfillmentservice.Service,
	accountService *accountservice.Service,
	deliveryService *deliveryservice.Service,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	adminLimiter := rate.NewLimiter(10, 30)

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook платежного провайдера: без аутентификации и без rate limit,
		// ретраи провайдера должны доходить всегда.
		r.Post("/webhooks/stripe", stripewebhook.New(logger, fulfillmentService, cfg.WebhookSecret).ServeHTTP)

		// Аккаунты: создаются платформой аутентификации.
		r.Post("/accounts", create.New(logger, accountService).ServeHTTP)
		r.Get("/accounts/{uid}", read.New(logger, accountService).ServeHTTP)

		// Админская зона
		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RequireAdmin(logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, adminLimiter))
			r.Get("/accounts", accountlist.New(logger, db).ServeHTTP)
			r.Get("/purchases", purchaselist.New(logger, db).ServeHTTP)
			r.Post("/purchases/{id}/deliver", deliver.New(logger, deliveryService).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
