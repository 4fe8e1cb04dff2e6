package db

import (
	"context"
	"time"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type enhancementRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnhancementRepository(db *gorm.DB, log *logger.Logger) ports.EnhancementRepository {
	return &enhancementRepository{
		db:  db,
		log: log,
	}
}

func (r *enhancementRepository) Create(ctx context.Context, record *domain.EnhancementRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		r.log.Errorw("enhancement_repo_create_failed", "task_id", record.TaskID, "operation", record.Operation, "error", err)
		return err
	}
	r.log.Infow("enhancement_repo_create_ok", "id", record.ID, "task_id", record.TaskID, "operation", record.Operation)
	return nil
}

func (r *enhancementRepository) UpdateStatus(ctx context.Context, taskID string, status domain.RecordStatus, message string) error {
	err := r.db.WithContext(ctx).
		Model(&domain.EnhancementRecord{}).
		Where("task_id = ?", taskID).
		Updates(map[string]interface{}{"status": status, "message": message}).Error
	if err != nil {
		r.log.Errorw("enhancement_repo_update_status_failed", "task_id", taskID, "status", status, "error", err)
		return err
	}
	r.log.Infow("enhancement_repo_update_status_ok", "task_id", taskID, "status", status)
	return nil
}

func (r *enhancementRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.EnhancementRecord, error) {
	var record domain.EnhancementRecord
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&record).Error; err != nil {
		r.log.Errorw("enhancement_repo_get_failed", "task_id", taskID, "error", err)
		return nil, err
	}
	return &record, nil
}

func (r *enhancementRepository) GetAll(ctx context.Context, limit int) ([]domain.EnhancementRecord, error) {
	var records []domain.EnhancementRecord
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.log.Errorw("enhancement_repo_list_failed", "error", err)
		return nil, err
	}
	r.log.Infow("enhancement_repo_list_ok", "count", len(records))
	return records, nil
}

func (r *enhancementRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EnhancementRecord, error) {
	var records []domain.EnhancementRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.RecordStatusCompleted, cutoff).
		Order("updated_at asc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.log.Errorw("enhancement_repo_list_expired_failed", "cutoff", cutoff, "error", err)
		return nil, err
	}
	return records, nil
}

func (r *enhancementRepository) HasNewerResult(ctx context.Context, resultKey string, afterID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.EnhancementRecord{}).
		Where("result_key = ? AND id > ? AND status NOT IN ?", resultKey, afterID,
			[]domain.RecordStatus{domain.RecordStatusFailed, domain.RecordStatusPurged}).
		Count(&count).Error
	if err != nil {
		r.log.Errorw("enhancement_repo_newer_result_failed", "result_key", resultKey, "error", err)
		return false, err
	}
	return count > 0, nil
}
