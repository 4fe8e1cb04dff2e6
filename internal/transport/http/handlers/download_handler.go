package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/transport/http/dto"
)

type DownloadHandler struct {
	store  ports.ArtifactStore
	logger *logger.Logger
}

func NewDownloadHandler(store ports.ArtifactStore, logger *logger.Logger) *DownloadHandler {
	return &DownloadHandler{store: store, logger: logger}
}

func (h *DownloadHandler) Download(c *fiber.Ctx) error {
	filename := c.Params("filename")

	rc, size, err := h.store.Open(c.UserContext(), domain.NamespaceResults, filename)
	if err != nil {
		status := statusFor(err)
		if status == fiber.StatusInternalServerError {
			h.logger.Errorw("download_failed", "filename", filename, "error", err)
			return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Warnw("download_not_found", "filename", filename)
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "File not found"})
	}

	c.Attachment(filename)
	return c.SendStream(rc, int(size))
}
