package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/models"
	"github.com/petfriends/servicedemand/internal/services"
)

// ErrorHandler returns a custom error handler middleware. Service layer
// errors keep their code and map to a status by class; everything else
// collapses to a generic 500.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		detail := models.ErrorDetail{
			Code:    "INTERNAL_ERROR",
			Message: "Internal Server Error",
			Path:    c.Path(),
		}

		var serviceErr *services.ServiceError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &serviceErr):
			code = statusFor(serviceErr.Code)
			detail.Code = serviceErr.Code
			detail.Message = serviceErr.Message
			detail.Details = serviceErr.Details
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			detail.Code = "ERROR"
			detail.Message = fiberErr.Message
		}

		logger.Error("Request error",
			"path", c.Path(),
			"method", c.Method(),
			"status", code,
			"error", err,
		)

		return c.Status(code).JSON(models.ErrorResponse{Error: detail})
	}
}

// statusFor maps service error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case services.CodeInvalidRequest:
		return fiber.StatusBadRequest
	case services.CodeModelUnavailable, services.CodeGridUnavailable, services.CodeNoData:
		return fiber.StatusServiceUnavailable
	case services.CodeRefreshInProgress:
		return fiber.StatusConflict
	case services.CodeExtractionFailed, services.CodeRefreshFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
