package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/essaymark/essaymark-go-api/internal/config"
	"github.com/essaymark/essaymark-go-api/internal/handler"
	"github.com/essaymark/essaymark-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler  *handler.GradingHandler
	ProgressHandler *handler.ProgressHandler
	JWTMiddleware   fiber.Handler
	AIConfigured    bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.AIConfigured))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	gradings := api.Group("/gradings", jwtMiddleware)

	// Progress websocket goes first so "/progress/ws" is not swallowed by "/:id".
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(gradings)
	}
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(gradings)
	}
}
