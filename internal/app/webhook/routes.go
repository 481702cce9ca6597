package webhook

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subscription-webhook/internal/config"
	"github.com/magabrotheeeer/subscription-webhook/internal/http/handlers/event"
	"github.com/magabrotheeeer/subscription-webhook/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты приложения.
// Маршруты принимают любой метод: неподдерживаемые отклоняет диспетчер.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, deps *Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	handler := event.New(logger, deps.Dispatcher, deps.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.HTTPServer.RateLimit, cfg.HTTPServer.RateBurst))

		r.Handle("/subscriptions/{userId}", handler)

		r.With(middlewarectx.SignatureMiddleware(logger, cfg.Webhook.Secret, cfg.Webhook.SignatureHeader)).
			Handle("/webhooks/subscriptions", handler)
	})

	r.Handle("/metrics", deps.Metrics.Handler())

	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
