package ports

import (
	"context"
	"io"

	"github.com/pixelift/backend/internal/domain"
)

// TaskRegistry holds the live state of every dispatched task.
type TaskRegistry interface {
	Create(id string) (domain.Task, error)
	Update(id string, task domain.Task) error
	Read(id string) (domain.Task, bool)
	Consume(id string) (domain.Task, <-chan struct{}, bool)
	Evict(id string)
	Len() int
}

// ProgressReporter is what a running job sees of the registry.
type ProgressReporter interface {
	Report(progress int, message string)
	Complete(result string)
	Fail(message string)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.EnhanceRequest) (domain.DispatchResult, error)
}

// ProgressStreamer relays task states to emit until the task is terminal or the tick cap is hit.
type ProgressStreamer interface {
	Follow(ctx context.Context, taskID string, emit func(domain.TaskStatus) error) error
}

type UploadService interface {
	Upload(ctx context.Context, input UploadInput) (*domain.Artifact, error)
}

type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Segmenter separates the foreground and returns a PNG with an alpha channel.
type Segmenter interface {
	Segment(ctx context.Context, image []byte) ([]byte, error)
}

// SuperResolver returns image enlarged by scale.
type SuperResolver interface {
	SuperResolve(ctx context.Context, image []byte, scale int) ([]byte, error)
}

// ArtifactStore is a key-value blob store split into namespaces.
type ArtifactStore interface {
	Exists(ctx context.Context, ns domain.Namespace, key string) (bool, error)
	Read(ctx context.Context, ns domain.Namespace, key string) ([]byte, error)
	Write(ctx context.Context, ns domain.Namespace, key string, data []byte) error
	Open(ctx context.Context, ns domain.Namespace, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, ns domain.Namespace, key string) error
}
