package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Next7Days handles GET requests for the per-day forecast of the seven
// days after today.
func (h *Handler) Next7Days(c *fiber.Ctx) error {
	resp, err := h.forecastService.Next7Days(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// NextWeek handles GET requests for the Monday-to-Sunday aggregate of
// the upcoming week.
func (h *Handler) NextWeek(c *fiber.Ctx) error {
	resp, err := h.forecastService.NextWeek(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// NextMonth handles GET requests for the next calendar month aggregate.
func (h *Handler) NextMonth(c *fiber.Ctx) error {
	resp, err := h.forecastService.NextMonth(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
