package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/petfriends/servicedemand/internal/models"
	"github.com/petfriends/servicedemand/internal/services"
)

// TriggerRefresh handles POST requests starting a refresh cycle in the
// background. A request arriving while a cycle runs is reported as
// skipped, never queued.
func (h *Handler) TriggerRefresh(c *fiber.Ctx) error {
	if h.refreshService.Running() {
		return c.Status(fiber.StatusAccepted).JSON(models.RefreshResponse{Status: "skipped"})
	}

	go func() {
		if err := h.refreshService.Run(context.Background()); err != nil {
			if err == services.ErrRefreshInProgress {
				h.logger.Debug("Manual refresh skipped, cycle already running")
				return
			}
			h.logger.Error("Manual refresh failed", "error", err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(models.RefreshResponse{Status: "started"})
}
