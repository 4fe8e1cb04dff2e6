package services

import (
	"sync"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
)

const completeMessage = "Complete!"

// ProgressReporter publishes the checkpoints of a single task. Progress never goes
// backwards and only the first Complete or Fail call has an effect.
type ProgressReporter struct {
	registry ports.TaskRegistry
	taskID   string
	logger   *logger.Logger

	mu       sync.Mutex
	last     int
	finished bool
}

func NewProgressReporter(registry ports.TaskRegistry, taskID string, log *logger.Logger) *ProgressReporter {
	return &ProgressReporter{
		registry: registry,
		taskID:   taskID,
		logger:   log,
	}
}

func (p *ProgressReporter) Report(progress int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		p.logger.Warnw("progress_report_after_terminal", "task_id", p.taskID, "progress", progress)
		return
	}

	progress = clampProgress(progress)
	if progress < p.last {
		p.logger.Warnw("progress_regression_clamped", "task_id", p.taskID, "reported", progress, "current", p.last)
		progress = p.last
	}

	p.publish(domain.Task{Progress: progress, Message: message})
	p.last = progress
}

func (p *ProgressReporter) Complete(result string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		p.logger.Warnw("progress_complete_after_terminal", "task_id", p.taskID)
		return
	}
	p.finished = true
	p.last = 100

	p.publish(domain.Task{
		Progress: 100,
		Message:  completeMessage,
		Done:     true,
		Result:   &result,
	})
}

func (p *ProgressReporter) Fail(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		p.logger.Warnw("progress_fail_after_terminal", "task_id", p.taskID)
		return
	}
	p.finished = true

	p.publish(domain.Task{
		Progress: p.last,
		Message:  message,
		Done:     true,
	})
}

func (p *ProgressReporter) publish(task domain.Task) {
	if err := p.registry.Update(p.taskID, task); err != nil {
		// The entry is gone only if someone evicted it early; the job keeps running.
		p.logger.Warnw("progress_update_dropped", "task_id", p.taskID, "progress", task.Progress, "error", err)
	}
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
