package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/petfriends/servicedemand/internal/models"
	"github.com/petfriends/servicedemand/internal/services"
)

// Predict handles POST requests scoring a single ad-hoc feature row.
func (h *Handler) Predict(c *fiber.Ctx) error {
	var req models.PredictRequest
	if err := c.BodyParser(&req); err != nil {
		return services.NewServiceError(services.CodeInvalidRequest, "malformed request body")
	}

	resp, err := h.predictService.Predict(&req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
