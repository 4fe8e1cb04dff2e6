package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"gorm.io/gorm"
)

// In-memory repositories used when database.enabled is false, and by tests.
// They return gorm.ErrRecordNotFound like the gorm-backed ones.

type MemoryArtifactRepository struct {
	mu        sync.RWMutex
	nextID    uint
	artifacts map[string]domain.Artifact
}

func NewMemoryArtifactRepository() ports.ArtifactRepository {
	return &MemoryArtifactRepository{artifacts: make(map[string]domain.Artifact)}
}

func (r *MemoryArtifactRepository) Create(ctx context.Context, artifact *domain.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now()
	artifact.ID = r.nextID
	artifact.CreatedAt = now
	artifact.UpdatedAt = now
	r.artifacts[artifact.Key] = *artifact
	return nil
}

func (r *MemoryArtifactRepository) GetByKey(ctx context.Context, key string) (*domain.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	artifact, ok := r.artifacts[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &artifact, nil
}

type MemoryEnhancementRepository struct {
	mu      sync.RWMutex
	nextID  uint
	records map[string]domain.EnhancementRecord
}

func NewMemoryEnhancementRepository() ports.EnhancementRepository {
	return &MemoryEnhancementRepository{records: make(map[string]domain.EnhancementRecord)}
}

func (r *MemoryEnhancementRepository) Create(ctx context.Context, record *domain.EnhancementRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now()
	record.ID = r.nextID
	record.CreatedAt = now
	record.UpdatedAt = now
	r.records[record.TaskID] = *record
	return nil
}

func (r *MemoryEnhancementRepository) UpdateStatus(ctx context.Context, taskID string, status domain.RecordStatus, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[taskID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	record.Status = status
	record.Message = message
	record.UpdatedAt = time.Now()
	r.records[taskID] = record
	return nil
}

func (r *MemoryEnhancementRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.EnhancementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[taskID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &record, nil
}

func (r *MemoryEnhancementRepository) GetAll(ctx context.Context, limit int) ([]domain.EnhancementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]domain.EnhancementRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID > records[j].ID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *MemoryEnhancementRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.EnhancementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []domain.EnhancementRecord
	for _, record := range r.records {
		if record.Status == domain.RecordStatusCompleted && record.UpdatedAt.Before(cutoff) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].UpdatedAt.Before(records[j].UpdatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *MemoryEnhancementRepository) HasNewerResult(ctx context.Context, resultKey string, afterID uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records {
		if record.ResultKey != resultKey || record.ID <= afterID {
			continue
		}
		if record.Status != domain.RecordStatusFailed && record.Status != domain.RecordStatusPurged {
			return true, nil
		}
	}
	return false, nil
}
