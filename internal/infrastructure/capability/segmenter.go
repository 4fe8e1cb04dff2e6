package capability

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pixelift/backend/internal/config"
	"github.com/pixelift/backend/internal/core/services"
)

const maxErrorBody = 256

// RembgClient calls a rembg-compatible inference server: the raw image is posted
// and a PNG with an alpha channel comes back.
type RembgClient struct {
	endpoint string
	timeout  time.Duration
}

func NewRembgClient(cfg config.SegmentationConfig) *RembgClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RembgClient{endpoint: cfg.Endpoint, timeout: timeout}
}

func (c *RembgClient) Segment(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(c.endpoint)
	agent.Timeout(timeout)
	agent.ContentType("application/octet-stream")
	agent.Set(fiber.HeaderAccept, "image/png")
	agent.Body(data)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, fmt.Errorf("%w: segmentation endpoint: %v", services.ErrModel, err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: segmentation request: %v", services.ErrModel, errs[0])
	}
	if code != fiber.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: segmentation server returned %d: %s", services.ErrModel, code, bytes.TrimSpace(body))
	}

	if _, err := png.DecodeConfig(bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("%w: segmentation server returned non-PNG output: %v", services.ErrModel, err)
	}
	return body, nil
}
