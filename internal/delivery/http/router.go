package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler, gatherer prometheus.Gatherer) {
	// Health check
	app.Get("/health", handler.HealthCheck)

	// Prometheus scrape endpoint
	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Batch endpoint
		api.Post("/aggregate/all", handler.AggregateAll)

		// Per-rule endpoints: solar-power, ess-charge, power-usage, ess-predict
		api.Post("/:rule/aggregate", handler.Aggregate)
		api.Get("/:rule/verify", handler.Verify)
		api.Get("/:rule/verify/export", handler.Export)
	}
}

// ErrorHandler renders fiber errors as JSON
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
