package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/pixelift/backend/internal/config"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/core/services"
	"github.com/pixelift/backend/internal/infrastructure/capability"
	"github.com/pixelift/backend/internal/infrastructure/db"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/infrastructure/remote"
	"github.com/pixelift/backend/internal/infrastructure/storage"
	"github.com/pixelift/backend/internal/infrastructure/workerpool"
	transporthttp "github.com/pixelift/backend/internal/transport/http"
	"github.com/pixelift/backend/pkg/secrets"
	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml")
	pflag.Parse()

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	var database *gorm.DB
	var artifactRepo ports.ArtifactRepository
	var historyRepo ports.EnhancementRepository
	if cfg.Database.Enabled {
		database, err = db.NewPostgresConnection(cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		log.Info("database connection established")

		if err := db.RunMigrations(database); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		log.Info("database migrations completed")

		artifactRepo = db.NewArtifactRepository(database, log)
		historyRepo = db.NewEnhancementRepository(database, log)
	} else {
		log.Warn("database disabled; upload metadata and history are kept in memory")
		artifactRepo = db.NewMemoryArtifactRepository()
		historyRepo = db.NewMemoryEnhancementRepository()
	}

	store, closeStore := newArtifactStore(cfg, log)
	defer closeStore()

	superResolver, err := capability.NewResampler(cfg.Upscale)
	if err != nil {
		log.Fatalf("failed to configure upscaler: %v", err)
	}

	pool := workerpool.New(cfg.Processing.Workers, cfg.Processing.QueueSize, log)
	registry := services.NewTaskRegistry()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if cfg.Retention.Enabled {
		retention := services.NewRetentionService(services.RetentionServiceConfig{
			Store:     store,
			History:   historyRepo,
			Logger:    log,
			TTL:       cfg.Retention.TTL,
			Interval:  cfg.Retention.Interval,
			BatchSize: cfg.Retention.BatchSize,
		})
		go retention.Run(bgCtx)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		BodyLimit:             cfg.Server.BodyLimit,
		Immutable:             true,
		ErrorHandler:          globalErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORS.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, HEAD, OPTIONS",
	}))

	app.Use(func(c *fiber.Ctx) error {
		hdr := cfg.Features.RequestIDHeader
		var reqID string
		if hdr != "" {
			reqID = c.Get(hdr)
		}
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		if hdr != "" {
			c.Set(hdr, reqID)
		}
		return c.Next()
	})

	if cfg.Features.EnableRequestLogging {
		app.Use(func(c *fiber.Ctx) error {
			start := time.Now()
			err := c.Next()
			routePath := ""
			if c.Route() != nil {
				routePath = c.Route().Path
			}
			log.Infow("http_access",
				"method", c.Method(),
				"path", c.Path(),
				"route", routePath,
				"query", string(c.Request().URI().QueryString()),
				"status", c.Response().StatusCode(),
				"latency_ms", time.Since(start).Milliseconds(),
				"client_ip", c.IP(),
				"user_agent", string(c.Request().Header.UserAgent()),
				"request_id", c.Locals("request_id"),
				"req_bytes", len(c.Request().Body()),
			)
			return err
		})
	}

	transporthttp.SetupRoutes(app, transporthttp.RouterConfig{
		Logger:        log,
		Config:        cfg,
		Registry:      registry,
		Pool:          pool,
		Store:         store,
		Segmenter:     capability.NewRembgClient(cfg.Segmentation),
		SuperResolver: superResolver,
		Artifacts:     artifactRepo,
		History:       historyRepo,
	})

	go func() {
		if err := app.Listen(cfg.Server.Address()); err != nil {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	log.Infof("server started on %s (workers=%d)", cfg.Server.Address(), cfg.Processing.Workers)

	gracefulShutdown(app, pool, stopBackground, database, log)
}

// resolveConfigPath falls back to the usual locations; "" means defaults and env only.
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	for _, candidate := range []string{"config/config.yaml", "../config/config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func newArtifactStore(cfg *config.Config, log *logger.Logger) (ports.ArtifactStore, func()) {
	if cfg.Storage.Backend == "sftp" {
		sftpCfg := cfg.Storage.SFTP
		password, privateKey, err := sftpCredentials(sftpCfg)
		if err != nil {
			log.Fatalf("failed to load sftp credentials: %v", err)
		}
		client := remote.NewSSHClient(remote.SSHConfig{
			Host:       sftpCfg.Host,
			Port:       sftpCfg.Port,
			User:       sftpCfg.User,
			Password:   password,
			PrivateKey: privateKey,
			Timeout:    sftpCfg.Timeout,
			MaxRetries: sftpCfg.MaxRetries,
		})
		store := storage.NewSFTPStore(client, cfg.Storage.UploadDir, cfg.Storage.ResultDir, log)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := store.Connect(ctx); err != nil {
			log.Fatalf("failed to connect sftp storage: %v", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Errorf("failed to close sftp storage: %v", err)
			}
		}
	}

	store, err := storage.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.ResultDir)
	if err != nil {
		log.Fatalf("failed to prepare local storage: %v", err)
	}
	return store, func() {}
}

func sftpCredentials(cfg config.SFTPConfig) (password, privateKey string, err error) {
	password, err = secrets.Reveal(cfg.Password, cfg.SecretKey)
	if err != nil {
		return "", "", fmt.Errorf("password: %w", err)
	}

	privateKey = cfg.PrivateKey
	if privateKey == "" && cfg.PrivateKeyFile != "" {
		raw, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return "", "", fmt.Errorf("private key file: %w", err)
		}
		privateKey = string(raw)
	}
	privateKey, err = secrets.Reveal(privateKey, cfg.SecretKey)
	if err != nil {
		return "", "", fmt.Errorf("private key: %w", err)
	}
	return password, privateKey, nil
}

func globalErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		// Reduce log level for expected errors (408 Timeout, 404 Not Found, etc.)
		if code == fiber.StatusRequestTimeout || code == fiber.StatusNotFound {
			log.Warnw("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", c.Locals("request_id"),
			)
		} else {
			log.Errorw("request error",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", c.Locals("request_id"),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func gracefulShutdown(app *fiber.App, pool *workerpool.Pool, stopBackground context.CancelFunc, database *gorm.DB, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}
	stopBackground()

	// Running jobs get the rest of the budget; queued ones still run.
	if err := pool.Stop(ctx); err != nil {
		log.Errorf("worker pool did not drain: %v", err)
	}

	if database != nil {
		if err := db.Close(database); err != nil {
			log.Errorf("failed to close database connection: %v", err)
		}
	}

	log.Info("server exited gracefully")
}
