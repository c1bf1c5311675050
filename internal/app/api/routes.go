package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/account/remove"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/account/restore"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/account/schedule"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/account/status"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/billing/checkout"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/billing/portal"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/billing/reactivate"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/billing/syncsub"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/billing/verify"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/entries/create"
	"github.com/magabrotheeeer/journal-accounts/internal/http/handlers/health"
	"github.com/magabrotheeeer/journal-accounts/internal/http/middlewarectx"
)

// Services — зависимости маршрутов. Каждое поле удовлетворяет интерфейсу
// своих обработчиков.
type Services struct {
	Auth interface {
		register.Service
		login.Service
	}
	Account status.Service
	Entries create.Service
	Billing interface {
		checkout.Service
		portal.Service
		verify.Service
		reactivate.Service
		syncsub.Service
		webhook.Service
	}
	Webhooks webhook.EventParser
	Deletion interface {
		schedule.Service
		restore.Service
		remove.Service
	}
	Tokens middlewarectx.TokenParser
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	limiter := middlewarectx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))
			r.Post("/auth/register", register.New(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, svc.Auth).ServeHTTP)
		})

		// Вебхук провайдера: аутентификация по подписи
		r.Post("/billing/webhook", webhook.New(logger, svc.Webhooks, svc.Billing, cfg.MaxWebhookBytes).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))
			r.Use(middleware.Timeout(cfg.CallableTimeout))

			r.Get("/account", status.New(logger, svc.Account).ServeHTTP)
			r.Post("/account/deletion", schedule.New(logger, svc.Deletion, cfg.GracePeriod).ServeHTTP)
			r.Delete("/account/deletion", restore.New(logger, svc.Deletion).ServeHTTP)
			r.Post("/account/delete", remove.New(logger, svc.Deletion, cfg.SweepAccountTimeout).ServeHTTP)

			r.Post("/entries", create.New(logger, svc.Entries).ServeHTTP)

			r.Post("/billing/checkout", checkout.New(logger, svc.Billing).ServeHTTP)
			r.Post("/billing/checkout/verify", verify.New(logger, svc.Billing).ServeHTTP)
			r.Post("/billing/portal", portal.New(logger, svc.Billing).ServeHTTP)
			r.Post("/billing/reactivate", reactivate.New(logger, svc.Billing).ServeHTTP)
			r.Post("/billing/sync", syncsub.New(logger, svc.Billing).ServeHTTP)
		})
	})

	r.Get("/health", http.HandlerFunc(health.Handler))
	r.Handle("/metrics", promhttp.Handler())
}
