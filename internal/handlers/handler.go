// Package handlers contains the HTTP layer. Handlers translate fiber
// requests into service calls and service errors into the shared error
// envelope.
package handlers

import (
	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/services"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger          *logging.Logger
	forecastService *services.ForecastService
	predictService  *services.PredictService
	refreshService  *services.RefreshService
}

// New creates a new handler instance
func New(logger *logging.Logger, forecastService *services.ForecastService,
	predictService *services.PredictService, refreshService *services.RefreshService,
) *Handler {
	return &Handler{
		logger:          logger,
		forecastService: forecastService,
		predictService:  predictService,
		refreshService:  refreshService,
	}
}
