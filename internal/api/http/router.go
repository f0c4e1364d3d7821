package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/support-chat/internal/api/http/handlers"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.AdminTicketsHandler
	Chat           *handlers.ChatHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())

	admin.Get("/tickets", cfg.Tickets.ListTickets)
	admin.Get("/tickets/:number", cfg.Tickets.GetTicket)
	admin.Get("/tickets/:number/history", cfg.Tickets.History)

	sessions := admin.Group("/sessions")
	sessions.Post("/", cfg.Chat.Open)
	sessions.Get("/:id", cfg.Chat.View)
	sessions.Delete("/:id", cfg.Chat.Close)
	sessions.Get("/:id/updates", cfg.Chat.Updates)
	sessions.Post("/:id/messages", cfg.Chat.SendMessage)
	sessions.Patch("/:id/status", cfg.Chat.UpdateStatus)
	sessions.Patch("/:id/priority", cfg.Chat.UpdatePriority)
	sessions.Post("/:id/reopen", cfg.Chat.Reopen)
	sessions.Post("/:id/typing", cfg.Chat.Typing)
	sessions.Put("/:id/viewport", cfg.Chat.Viewport)
	sessions.Put("/:id/presence", cfg.Chat.Presence)
	sessions.Post("/:id/scroll", cfg.Chat.Scroll)
}
