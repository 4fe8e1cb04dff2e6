package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/db"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/infrastructure/storage"
	"github.com/pixelift/backend/internal/infrastructure/workerpool"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type segmenterFunc func(ctx context.Context, image []byte) ([]byte, error)

func (f segmenterFunc) Segment(ctx context.Context, image []byte) ([]byte, error) {
	return f(ctx, image)
}

type superResolverFunc func(ctx context.Context, image []byte, scale int) ([]byte, error)

func (f superResolverFunc) SuperResolve(ctx context.Context, image []byte, scale int) ([]byte, error) {
	return f(ctx, image, scale)
}

// recordingRegistry keeps every record written through Update, in order.
type recordingRegistry struct {
	*TaskRegistry
	mu      sync.Mutex
	updates []domain.Task
}

func newRecordingRegistry() *recordingRegistry {
	return &recordingRegistry{TaskRegistry: NewTaskRegistry()}
}

func (r *recordingRegistry) Update(id string, task domain.Task) error {
	task.ID = id
	r.mu.Lock()
	r.updates = append(r.updates, task)
	r.mu.Unlock()
	return r.TaskRegistry.Update(id, task)
}

func (r *recordingRegistry) history() []domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Task(nil), r.updates...)
}

type testEnv struct {
	registry   *recordingRegistry
	pool       *workerpool.Pool
	store      ports.ArtifactStore
	history    ports.EnhancementRepository
	dispatcher ports.Dispatcher
	stream     ports.ProgressStreamer
}

func newTestEnv(t *testing.T, seg ports.Segmenter, sr ports.SuperResolver) *testEnv {
	t.Helper()

	log := logger.NewNop()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir+"/uploads", dir+"/results")
	require.NoError(t, err)

	pool := workerpool.New(2, 16, log)
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	registry := newRecordingRegistry()
	history := db.NewMemoryEnhancementRepository()

	return &testEnv{
		registry: registry,
		pool:     pool,
		store:    store,
		history:  history,
		dispatcher: NewEnhanceService(EnhanceServiceConfig{
			Registry:      registry,
			Pool:          pool,
			Store:         store,
			Segmenter:     seg,
			SuperResolver: sr,
			History:       history,
			Logger:        log,
		}),
		stream: NewProgressStream(ProgressStreamConfig{
			Registry:     registry,
			Logger:       log,
			PollInterval: 5 * time.Millisecond,
			MaxTicks:     2000,
		}),
	}
}

func (e *testEnv) upload(t *testing.T, key string, data []byte) {
	t.Helper()
	require.NoError(t, e.store.Write(context.Background(), domain.NamespaceUploads, key, data))
}

// collect follows taskID to the end and returns everything emitted.
func collect(t *testing.T, stream ports.ProgressStreamer, taskID string) ([]domain.TaskStatus, error) {
	t.Helper()
	var statuses []domain.TaskStatus
	err := stream.Follow(context.Background(), taskID, func(s domain.TaskStatus) error {
		statuses = append(statuses, s)
		return nil
	})
	return statuses, err
}
