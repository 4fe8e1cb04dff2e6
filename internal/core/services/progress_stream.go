package services

import (
	"context"
	"time"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
)

const (
	defaultPollInterval = 300 * time.Millisecond
	defaultMaxTicks     = 100
)

type ProgressStreamConfig struct {
	Registry     ports.TaskRegistry
	Logger       *logger.Logger
	PollInterval time.Duration
	MaxTicks     int
}

type progressStream struct {
	registry ports.TaskRegistry
	logger   *logger.Logger
	interval time.Duration
	maxTicks int
}

func NewProgressStream(cfg ProgressStreamConfig) ports.ProgressStreamer {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxTicks := cfg.MaxTicks
	if maxTicks <= 0 {
		maxTicks = defaultMaxTicks
	}
	return &progressStream{
		registry: cfg.Registry,
		logger:   cfg.Logger,
		interval: interval,
		maxTicks: maxTicks,
	}
}

// Follow emits the state of taskID until it is terminal, ctx is done, or maxTicks
// ticks pass. A terminal state is emitted once and evicted. Running out of ticks
// returns ErrStreamTimeout and leaves the entry in place for a later stream.
//
// Besides the ticker, a registry update wakes the loop early; only ticker waits
// count toward the cap.
func (s *progressStream) Follow(ctx context.Context, taskID string, emit func(domain.TaskStatus) error) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ticks := 0
	for {
		task, changed, found := s.registry.Consume(taskID)

		status := domain.WaitingStatus()
		if found {
			status = task.Status()
		}
		if err := emit(status); err != nil {
			s.logger.Debugw("progress_stream_emit_failed", "task_id", taskID, "error", err)
			return err
		}
		if found && task.Done {
			s.logger.Infow("progress_stream_terminal", "task_id", taskID, "succeeded", task.Succeeded())
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Debugw("progress_stream_closed_by_client", "task_id", taskID)
			return ctx.Err()
		case <-changed:
		case <-ticker.C:
			ticks++
			if ticks >= s.maxTicks {
				s.logger.Warnw("progress_stream_timeout", "task_id", taskID, "ticks", ticks)
				return ErrStreamTimeout
			}
		}
	}
}
