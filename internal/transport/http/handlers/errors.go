package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pixelift/backend/internal/core/services"
	"github.com/pixelift/backend/internal/infrastructure/storage"
)

// statusFor maps service errors to HTTP statuses. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, storage.ErrArtifactNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidParams),
		errors.Is(err, services.ErrUnsupportedMediaType),
		errors.Is(err, services.ErrInvalidImage),
		errors.Is(err, storage.ErrInvalidKey):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
