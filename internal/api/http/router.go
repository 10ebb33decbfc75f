package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/telegram-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/telegram-auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Telegram       *handlers.TelegramHandler
	AdminTelegram  *handlers.AdminTelegramHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	passport := api.Group("/v1/passport/telegram")
	passport.Get("/config", cfg.Telegram.Config)
	passport.Post("/callback", cfg.Telegram.Callback)
	passport.Get("/callback", cfg.Telegram.CallbackRedirect)

	user := api.Group("/v1/user/telegram", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleUser))
	user.Post("/link", cfg.Telegram.Link)
	user.Delete("/unlink", cfg.Telegram.Unlink)

	admin := api.Group("/v2/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleAdmin))
	admin.Get("/metrics", cfg.AdminTelegram.Metrics)

	telegram := admin.Group("/telegram")
	telegram.Get("/config", cfg.AdminTelegram.GetConfig)
	telegram.Put("/config", cfg.AdminTelegram.UpdateConfig)
	telegram.Post("/test-bot", cfg.AdminTelegram.TestBot)
	telegram.Get("/stats", cfg.AdminTelegram.Stats)
	telegram.Post("/webhook/setup", cfg.AdminTelegram.SetupWebhook)
	telegram.Get("/webhook/info", cfg.AdminTelegram.WebhookInfo)
	telegram.Delete("/webhook", cfg.AdminTelegram.DeleteWebhook)
}
