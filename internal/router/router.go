package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/complaint-intake-api/internal/config"
	"github.com/noah-isme/complaint-intake-api/internal/handler"
	"github.com/noah-isme/complaint-intake-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AnalysisHandler  *handler.AnalysisHandler
	ComplaintHandler *handler.ComplaintHandler
	ReferenceHandler *handler.ReferenceHandler
	// Identity resolves the caller ahead of the rate limiter; nil skips it.
	Identity fiber.Handler
	// RateLimiter guards the model-backed routes; nil disables limiting.
	RateLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	identity := orNext(deps.Identity)
	limiter := orNext(deps.RateLimiter)

	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.Register(api.Group("/analysis", identity, limiter))
	}

	if deps.ReferenceHandler != nil {
		deps.ReferenceHandler.Register(api.Group("/references", identity, limiter))
	}

	if deps.ComplaintHandler != nil {
		deps.ComplaintHandler.Register(api.Group("/complaints"))
		deps.ComplaintHandler.RegisterProbe(api.Group("/db"))
	}
}

func orNext(h fiber.Handler) fiber.Handler {
	if h == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return h
}
