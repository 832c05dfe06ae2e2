// Package router wires the fiber app: middlewares, routes and the error
// handler.
package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/petfriends/servicedemand/internal/config"
	"github.com/petfriends/servicedemand/internal/handlers"
	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/middleware"
	"github.com/petfriends/servicedemand/internal/services"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, forecastService *services.ForecastService,
	predictService *services.PredictService, refreshService *services.RefreshService,
	cfg *config.Config) *handlers.Handler {
	// Create handler instance
	h := handlers.New(logger, forecastService, predictService, refreshService)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	// API key authentication middleware
	authMiddleware := middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled)

	// Forecast routes (protected by API key)
	forecast := app.Group("/servicedemand/predict", authMiddleware)
	forecast.Get("/next7days", h.Next7Days)
	forecast.Get("/nextweek", h.NextWeek)
	forecast.Get("/nextmonth", h.NextMonth)

	// Ad-hoc scoring route
	app.Post("/predict", authMiddleware, h.Predict)

	// Admin routes (protected by API key)
	admin := app.Group("/admin", authMiddleware)
	admin.Post("/refresh", h.TriggerRefresh)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, forecastService *services.ForecastService,
	predictService *services.PredictService, refreshService *services.RefreshService,
	cfg *config.Config,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ServiceDemand API",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, forecastService, predictService, refreshService, cfg)

	return app
}
