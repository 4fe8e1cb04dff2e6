package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/infrastructure/workerpool"
)

const defaultJobTimeout = 5 * time.Minute

// JobSubmitter is the part of the worker pool the dispatcher needs.
type JobSubmitter interface {
	Submit(job workerpool.Job) (*workerpool.Handle, error)
}

type EnhanceServiceConfig struct {
	Registry      ports.TaskRegistry
	Pool          JobSubmitter
	Store         ports.ArtifactStore
	Segmenter     ports.Segmenter
	SuperResolver ports.SuperResolver
	History       ports.EnhancementRepository
	Logger        *logger.Logger
	JobTimeout    time.Duration
}

type enhanceService struct {
	registry      ports.TaskRegistry
	pool          JobSubmitter
	store         ports.ArtifactStore
	segmenter     ports.Segmenter
	superResolver ports.SuperResolver
	history       ports.EnhancementRepository
	logger        *logger.Logger
	jobTimeout    time.Duration
}

var _ ports.ProgressReporter = (*ProgressReporter)(nil)

func NewEnhanceService(cfg EnhanceServiceConfig) ports.Dispatcher {
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &enhanceService{
		registry:      cfg.Registry,
		pool:          cfg.Pool,
		store:         cfg.Store,
		segmenter:     cfg.Segmenter,
		superResolver: cfg.SuperResolver,
		history:       cfg.History,
		logger:        cfg.Logger,
		jobTimeout:    timeout,
	}
}

// Dispatch validates req, registers a task and queues the job. It never waits for
// the job: the returned task id is the only link to its outcome.
func (s *enhanceService) Dispatch(ctx context.Context, req domain.EnhanceRequest) (domain.DispatchResult, error) {
	if err := validateRequest(req); err != nil {
		s.logger.Warnw("enhance_dispatch_invalid", "input", req.InputKey, "operation", req.Operation, "scale", req.Scale, "error", err)
		return domain.DispatchResult{}, err
	}

	exists, err := s.store.Exists(ctx, domain.NamespaceUploads, req.InputKey)
	if err != nil {
		s.logger.Errorw("enhance_dispatch_lookup_failed", "input", req.InputKey, "error", err)
		return domain.DispatchResult{}, fmt.Errorf("failed to look up input: %w", err)
	}
	if !exists {
		s.logger.Warnw("enhance_dispatch_input_missing", "input", req.InputKey)
		return domain.DispatchResult{}, ErrNotFound
	}

	resultKey := resultKeyFor(req)
	taskID := uuid.New().String()

	if _, err := s.registry.Create(taskID); err != nil {
		return domain.DispatchResult{}, err
	}

	s.recordCreated(ctx, taskID, req, resultKey)

	if _, err := s.pool.Submit(s.newJob(taskID, req, resultKey)); err != nil {
		s.registry.Evict(taskID)
		s.recordStatus(taskID, domain.RecordStatusFailed, err.Error())
		s.logger.Errorw("enhance_dispatch_submit_failed", "task_id", taskID, "error", err)
		return domain.DispatchResult{}, fmt.Errorf("failed to schedule job: %w", err)
	}

	s.logger.Infow("enhance_dispatch_ok", "task_id", taskID, "operation", req.Operation, "input", req.InputKey, "result", resultKey)
	return domain.DispatchResult{
		TaskID:      taskID,
		Description: describe(req),
		ResultKey:   resultKey,
	}, nil
}

func (s *enhanceService) newJob(taskID string, req domain.EnhanceRequest, resultKey string) workerpool.Job {
	return func(poolCtx context.Context) (err error) {
		reporter := NewProgressReporter(s.registry, taskID, s.logger)
		started := time.Now()

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
				s.logger.Errorw("enhance_job_panic", "task_id", taskID, "panic", r)
				s.recordStatus(taskID, domain.RecordStatusFailed, err.Error())
				reporter.Fail("Error: " + err.Error())
			}
		}()

		ctx, cancel := context.WithTimeout(poolCtx, s.jobTimeout)
		defer cancel()

		s.recordStatus(taskID, domain.RecordStatusRunning, "")
		reporter.Report(0, "Starting...")

		if err := s.process(ctx, reporter, req, resultKey); err != nil {
			s.logger.Errorw("enhance_job_failed", "task_id", taskID, "operation", req.Operation, "error", err)
			// History first: once the terminal state is published the client may read it.
			s.recordStatus(taskID, domain.RecordStatusFailed, err.Error())
			reporter.Fail("Error: " + err.Error())
			return err
		}

		s.recordStatus(taskID, domain.RecordStatusCompleted, completeMessage)
		reporter.Complete(resultKey)
		s.logger.Infow("enhance_job_completed", "task_id", taskID, "operation", req.Operation, "result", resultKey, "duration_ms", time.Since(started).Milliseconds())
		return nil
	}
}

func (s *enhanceService) process(ctx context.Context, reporter ports.ProgressReporter, req domain.EnhanceRequest, resultKey string) error {
	input, err := s.store.Read(ctx, domain.NamespaceUploads, req.InputKey)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var output []byte
	switch req.Operation {
	case domain.OperationRemoveBackground:
		reporter.Report(20, "Analyzing...")
		output, err = s.segmenter.Segment(ctx, input)
	case domain.OperationUpscale:
		reporter.Report(20, fmt.Sprintf("Upscaling %dx...", req.Scale))
		output, err = s.superResolver.SuperResolve(ctx, input, req.Scale)
	default:
		err = ErrUnsupportedOperation
	}
	if err != nil {
		if !errors.Is(err, ErrModel) {
			err = fmt.Errorf("%w: %w", ErrModel, err)
		}
		return err
	}

	reporter.Report(80, "Saving result...")
	if err := s.store.Write(ctx, domain.NamespaceResults, resultKey, output); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func (s *enhanceService) recordCreated(ctx context.Context, taskID string, req domain.EnhanceRequest, resultKey string) {
	record := &domain.EnhancementRecord{
		TaskID:    taskID,
		Operation: req.Operation,
		InputKey:  req.InputKey,
		ResultKey: resultKey,
		Status:    domain.RecordStatusPending,
		Params:    domain.JSONB{"scale": req.Scale},
	}
	if err := s.history.Create(ctx, record); err != nil {
		s.logger.Warnw("enhance_history_create_failed", "task_id", taskID, "error", err)
	}
}

// recordStatus runs on the job goroutine, so it uses its own short-lived context.
func (s *enhanceService) recordStatus(taskID string, status domain.RecordStatus, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.UpdateStatus(ctx, taskID, status, message); err != nil {
		s.logger.Warnw("enhance_history_update_failed", "task_id", taskID, "status", status, "error", err)
	}
}

func validateRequest(req domain.EnhanceRequest) error {
	if !validKey(req.InputKey) {
		return fmt.Errorf("%w: invalid filename %q", ErrInvalidParams, req.InputKey)
	}
	switch req.Operation {
	case domain.OperationRemoveBackground:
		return nil
	case domain.OperationUpscale:
		if req.Scale != 2 && req.Scale != 4 {
			return fmt.Errorf("%w: %w", ErrInvalidParams, ErrUnsupportedScale)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrInvalidParams, ErrUnsupportedOperation)
	}
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`)
}

// resultKeyFor names the output. Upscaled JPEG and PNG keep their name; anything
// else is written as PNG, so the key gets a .png extension.
func resultKeyFor(req domain.EnhanceRequest) string {
	ext := path.Ext(req.InputKey)
	stem := strings.TrimSuffix(req.InputKey, ext)
	if req.Operation == domain.OperationUpscale {
		switch strings.ToLower(ext) {
		case ".png", ".jpg", ".jpeg":
			return fmt.Sprintf("upscale%dx_%s", req.Scale, req.InputKey)
		}
		return fmt.Sprintf("upscale%dx_%s.png", req.Scale, stem)
	}
	return "nobg_" + stem + ".png"
}

func describe(req domain.EnhanceRequest) string {
	if req.Operation == domain.OperationUpscale {
		return fmt.Sprintf("Upscaling image %dx", req.Scale)
	}
	return "Removing background"
}
