package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	_ "golang.org/x/image/webp"
)

var allowedContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// AllowedContentTypes lists the accepted upload media types.
func AllowedContentTypes() []string {
	return []string{"image/jpeg", "image/png", "image/webp"}
}

type UploadServiceConfig struct {
	Store     ports.ArtifactStore
	Artifacts ports.ArtifactRepository
	Logger    *logger.Logger
	MaxBytes  int64
}

type uploadService struct {
	store     ports.ArtifactStore
	artifacts ports.ArtifactRepository
	logger    *logger.Logger
	maxBytes  int64
}

func NewUploadService(cfg UploadServiceConfig) ports.UploadService {
	return &uploadService{
		store:     cfg.Store,
		artifacts: cfg.Artifacts,
		logger:    cfg.Logger,
		maxBytes:  cfg.MaxBytes,
	}
}

func (s *uploadService) Upload(ctx context.Context, input ports.UploadInput) (*domain.Artifact, error) {
	defaultExt, ok := allowedContentTypes[input.ContentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q, allowed: %s", ErrUnsupportedMediaType, input.ContentType, strings.Join(AllowedContentTypes(), ", "))
	}

	reader := input.Body
	if s.maxBytes > 0 {
		reader = io.LimitReader(reader, s.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidImage, s.maxBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(input.Filename), "."))
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		ext = defaultExt
	}
	key := fmt.Sprintf("%s.%s", uuid.New().String(), ext)

	if err := s.store.Write(ctx, domain.NamespaceUploads, key, data); err != nil {
		s.logger.Errorw("upload_store_failed", "key", key, "error", err)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	artifact := &domain.Artifact{
		Key:          key,
		OriginalName: input.Filename,
		ContentType:  input.ContentType,
		Width:        cfg.Width,
		Height:       cfg.Height,
		SizeBytes:    int64(len(data)),
	}
	if err := s.artifacts.Create(ctx, artifact); err != nil {
		s.logger.Warnw("upload_metadata_save_failed", "key", key, "error", err)
	}

	s.logger.Infow("upload_ok", "key", key, "content_type", input.ContentType, "width", cfg.Width, "height", cfg.Height, "bytes", len(data))
	return artifact, nil
}
