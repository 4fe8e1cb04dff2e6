package db

import (
	"context"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type artifactRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepository(db *gorm.DB, log *logger.Logger) ports.ArtifactRepository {
	return &artifactRepository{db: db, log: log}
}

func (r *artifactRepository) Create(ctx context.Context, artifact *domain.Artifact) error {
	if err := r.db.WithContext(ctx).Create(artifact).Error; err != nil {
		r.log.Errorw("artifact_repo_create_failed", "key", artifact.Key, "error", err)
		return err
	}
	r.log.Infow("artifact_repo_create_ok", "id", artifact.ID, "key", artifact.Key)
	return nil
}

func (r *artifactRepository) GetByKey(ctx context.Context, key string) (*domain.Artifact, error) {
	var artifact domain.Artifact
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&artifact).Error; err != nil {
		r.log.Errorw("artifact_repo_get_failed", "key", key, "error", err)
		return nil, err
	}
	return &artifact, nil
}
