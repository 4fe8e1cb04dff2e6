package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/transport/http/dto"
)

type UploadHandler struct {
	service ports.UploadService
	logger  *logger.Logger
}

func NewUploadHandler(service ports.UploadService, logger *logger.Logger) *UploadHandler {
	return &UploadHandler{service: service, logger: logger}
}

func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		h.logger.Warnw("upload_missing_file", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "file is required",
		})
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Errorw("upload_open_failed", "filename", fh.Filename, "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "could not read uploaded file",
		})
	}
	defer f.Close()

	artifact, err := h.service.Upload(c.UserContext(), ports.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Body:        f,
	})
	if err != nil {
		status := statusFor(err)
		if status == fiber.StatusInternalServerError {
			h.logger.Errorw("upload_failed", "filename", fh.Filename, "error", err)
		} else {
			h.logger.Warnw("upload_rejected", "filename", fh.Filename, "error", err)
		}
		return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.ArtifactToUploadResponse(artifact))
}
