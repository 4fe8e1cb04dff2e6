package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/core/services"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
)

type ProgressHandler struct {
	stream ports.ProgressStreamer
	logger *logger.Logger
}

func NewProgressHandler(stream ports.ProgressStreamer, logger *logger.Logger) *ProgressHandler {
	return &ProgressHandler{stream: stream, logger: logger}
}

// Stream relays task progress as Server-Sent Events until the task is terminal.
func (h *ProgressHandler) Stream(c *fiber.Ctx) error {
	// Copied: the stream writer outlives the request buffer.
	taskID := utils.CopyString(c.Params("task_id"))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	h.logger.Infow("progress_stream_open", "task_id", taskID, "transport", "sse")

	// c must not be touched inside the writer: fiber recycles it once the handler returns.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		err := h.stream.Follow(ctx, taskID, func(status domain.TaskStatus) error {
			payload, err := json.Marshal(status)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload); err != nil {
				return err
			}
			// A failed flush means the client went away.
			return w.Flush()
		})
		h.logClosed(taskID, "sse", err)
	})

	return nil
}

// StreamWS relays the same states over a WebSocket, one JSON frame per state.
func (h *ProgressHandler) StreamWS(c *websocket.Conn) {
	taskID := c.Params("task_id")
	h.logger.Infow("progress_stream_open", "task_id", taskID, "transport", "websocket")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reads only serve to notice the client closing the socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err := h.stream.Follow(ctx, taskID, func(status domain.TaskStatus) error {
		return c.WriteJSON(status)
	})
	h.logClosed(taskID, "websocket", err)

	reason := "done"
	if errors.Is(err, services.ErrStreamTimeout) {
		reason = "timeout"
	}
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	_ = c.Close()
}

func (h *ProgressHandler) logClosed(taskID, transport string, err error) {
	switch {
	case err == nil:
		h.logger.Infow("progress_stream_done", "task_id", taskID, "transport", transport)
	case errors.Is(err, services.ErrStreamTimeout):
		h.logger.Warnw("progress_stream_timeout", "task_id", taskID, "transport", transport)
	default:
		h.logger.Infow("progress_stream_disconnected", "task_id", taskID, "transport", transport, "error", err)
	}
}
