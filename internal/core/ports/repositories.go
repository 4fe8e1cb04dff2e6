package ports

import (
	"context"
	"time"

	"github.com/pixelift/backend/internal/domain"
)

type ArtifactRepository interface {
	Create(ctx context.Context, artifact *domain.Artifact) error
	GetByKey(ctx context.Context, key string) (*domain.Artifact, error)
}

type EnhancementRepository interface {
	Create(ctx context.Context, record *domain.EnhancementRecord) error
	UpdateStatus(ctx context.Context, taskID string, status domain.RecordStatus, message string) error
	GetByTaskID(ctx context.Context, taskID string) (*domain.EnhancementRecord, error)
	GetAll(ctx context.Context, limit int) ([]domain.EnhancementRecord, error)
	// ListCompletedBefore returns completed records last updated before cutoff, oldest first.
	ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EnhancementRecord, error)
	// HasNewerResult reports whether a record created after afterID still owns resultKey.
	HasNewerResult(ctx context.Context, resultKey string, afterID uint) (bool, error)
}
