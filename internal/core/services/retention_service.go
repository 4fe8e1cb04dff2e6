package services

import (
	"context"
	"time"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
)

const defaultRetentionBatch = 100

type RetentionServiceConfig struct {
	Store     ports.ArtifactStore
	History   ports.EnhancementRepository
	Logger    *logger.Logger
	TTL       time.Duration
	Interval  time.Duration
	BatchSize int
}

// RetentionService deletes result artifacts of tasks that completed more than TTL
// ago and marks their history records purged. Uploads are kept: another task may
// still reference them.
type RetentionService struct {
	store    ports.ArtifactStore
	history  ports.EnhancementRepository
	logger   *logger.Logger
	ttl      time.Duration
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewRetentionService(cfg RetentionServiceConfig) *RetentionService {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultRetentionBatch
	}
	return &RetentionService{
		store:    cfg.Store,
		history:  cfg.History,
		logger:   cfg.Logger,
		ttl:      cfg.TTL,
		interval: cfg.Interval,
		batch:    batch,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *RetentionService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infow("retention_loop_started", "ttl", s.ttl, "interval", s.interval)
	s.sweepAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweepAndLog(ctx)
		case <-ctx.Done():
			s.logger.Infow("retention_loop_stopped")
			return
		}
	}
}

func (s *RetentionService) sweepAndLog(ctx context.Context) {
	purged, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Errorw("retention_sweep_failed", "purged", purged, "error", err)
		return
	}
	if purged > 0 {
		s.logger.Infow("retention_sweep_ok", "purged", purged)
	}
}

// Sweep purges one batch of expired results and returns how many were removed.
func (s *RetentionService) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	records, err := s.history.ListCompletedBefore(ctx, cutoff, s.batch)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		message, err := s.purgeResult(ctx, record)
		if err != nil {
			s.logger.Warnw("retention_delete_failed", "task_id", record.TaskID, "result", record.ResultKey, "error", err)
			continue
		}
		if err := s.history.UpdateStatus(ctx, record.TaskID, domain.RecordStatusPurged, message); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

// purgeResult removes the record's result file unless a later task re-rendered the
// same key, in which case the file belongs to that task now.
func (s *RetentionService) purgeResult(ctx context.Context, record domain.EnhancementRecord) (string, error) {
	if record.ResultKey == "" {
		return "result expired", nil
	}
	superseded, err := s.history.HasNewerResult(ctx, record.ResultKey, record.ID)
	if err != nil {
		return "", err
	}
	if superseded {
		s.logger.Debugw("retention_result_superseded", "task_id", record.TaskID, "result", record.ResultKey)
		return "result superseded", nil
	}
	if err := s.store.Delete(ctx, domain.NamespaceResults, record.ResultKey); err != nil {
		return "", err
	}
	return "result expired", nil
}
