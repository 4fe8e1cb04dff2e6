package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/transport/http/dto"
)

const defaultScale = 2

type EnhanceHandler struct {
	service ports.Dispatcher
	logger  *logger.Logger
}

func NewEnhanceHandler(service ports.Dispatcher, logger *logger.Logger) *EnhanceHandler {
	return &EnhanceHandler{service: service, logger: logger}
}

// filenameParam copies the route value: the job reads it after fiber has recycled
// the request buffer.
func filenameParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("filename"))
}

// RemoveBackground queues background removal and returns the task id.
func (h *EnhanceHandler) RemoveBackground(c *fiber.Ctx) error {
	return h.dispatch(c, domain.EnhanceRequest{
		InputKey:  filenameParam(c),
		Operation: domain.OperationRemoveBackground,
	})
}

// Upscale queues super-resolution and returns the task id.
func (h *EnhanceHandler) Upscale(c *fiber.Ctx) error {
	scale := defaultScale
	if raw := c.Query("scale"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.logger.Warnw("enhance_upscale_invalid_scale", "scale", raw)
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "scale must be an integer",
			})
		}
		scale = parsed
	}

	return h.dispatch(c, domain.EnhanceRequest{
		InputKey:  filenameParam(c),
		Operation: domain.OperationUpscale,
		Scale:     scale,
	})
}

func (h *EnhanceHandler) dispatch(c *fiber.Ctx, req domain.EnhanceRequest) error {
	h.logger.Infow("enhance_request", "operation", req.Operation, "filename", req.InputKey, "scale", req.Scale)

	result, err := h.service.Dispatch(c.UserContext(), req)
	if err != nil {
		status := statusFor(err)
		if status == fiber.StatusInternalServerError {
			h.logger.Errorw("enhance_dispatch_failed", "operation", req.Operation, "filename", req.InputKey, "error", err)
			return c.Status(status).JSON(dto.ErrorResponse{
				Error: "Processing failed: " + err.Error(),
			})
		}
		h.logger.Warnw("enhance_dispatch_rejected", "operation", req.Operation, "filename", req.InputKey, "status", status, "error", err)
		return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	h.logger.Infow("enhance_started", "operation", req.Operation, "task_id", result.TaskID)
	return c.Status(fiber.StatusOK).JSON(dto.DispatchToResponse(req.InputKey, result))
}
