package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/pixelift/backend/internal/config"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/core/services"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/infrastructure/workerpool"
	"github.com/pixelift/backend/internal/transport/http/handlers"
)

type RouterConfig struct {
	Logger        *logger.Logger
	Config        *config.Config
	Registry      ports.TaskRegistry
	Pool          *workerpool.Pool
	Store         ports.ArtifactStore
	Segmenter     ports.Segmenter
	SuperResolver ports.SuperResolver
	Artifacts     ports.ArtifactRepository
	History       ports.EnhancementRepository
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	// Initialize services
	enhanceService := services.NewEnhanceService(services.EnhanceServiceConfig{
		Registry:      cfg.Registry,
		Pool:          cfg.Pool,
		Store:         cfg.Store,
		Segmenter:     cfg.Segmenter,
		SuperResolver: cfg.SuperResolver,
		History:       cfg.History,
		Logger:        cfg.Logger,
		JobTimeout:    cfg.Config.Processing.JobTimeout,
	})

	progressStream := services.NewProgressStream(services.ProgressStreamConfig{
		Registry:     cfg.Registry,
		Logger:       cfg.Logger,
		PollInterval: cfg.Config.Processing.PollInterval,
		MaxTicks:     cfg.Config.Processing.MaxTicks,
	})

	uploadService := services.NewUploadService(services.UploadServiceConfig{
		Store:     cfg.Store,
		Artifacts: cfg.Artifacts,
		Logger:    cfg.Logger,
		MaxBytes:  int64(cfg.Config.Server.BodyLimit),
	})

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(uploadService, cfg.Logger)
	enhanceHandler := handlers.NewEnhanceHandler(enhanceService, cfg.Logger)
	progressHandler := handlers.NewProgressHandler(progressStream, cfg.Logger)
	downloadHandler := handlers.NewDownloadHandler(cfg.Store, cfg.Logger)
	historyHandler := handlers.NewHistoryHandler(cfg.History)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"message": "AI Photo Enhancer API",
			"endpoints": fiber.Map{
				"upload":      "POST /upload",
				"remove_bg":   "POST /enhance/background/{filename}",
				"upscale":     "POST /enhance/upscale/{filename}?scale=2|4",
				"progress":    "GET /progress/{task_id}",
				"progress_ws": "GET /ws/progress/{task_id}",
				"download":    "GET /download/{filename}",
				"history":     "GET /history",
			},
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"pool":   cfg.Pool.Stats(),
			"tasks":  cfg.Registry.Len(),
		})
	})

	// Progress over WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/progress/:task_id", websocket.New(progressHandler.StreamWS))

	// Root paths match the original frontend; /api/v1 carries the same routes.
	for _, r := range []fiber.Router{app, app.Group("/api/v1")} {
		r.Post("/upload", uploadHandler.Upload)
		r.Post("/enhance/background/:filename", enhanceHandler.RemoveBackground)
		r.Post("/enhance/upscale/:filename", enhanceHandler.Upscale)
		r.Get("/progress/:task_id", progressHandler.Stream)
		r.Get("/download/:filename", downloadHandler.Download)
		r.Get("/history", historyHandler.GetRecords)
	}
}
