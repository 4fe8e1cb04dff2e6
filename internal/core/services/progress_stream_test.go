package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStream(registry *TaskRegistry, interval time.Duration, maxTicks int) *progressStream {
	return NewProgressStream(ProgressStreamConfig{
		Registry:     registry,
		Logger:       logger.NewNop(),
		PollInterval: interval,
		MaxTicks:     maxTicks,
	}).(*progressStream)
}

func TestProgressStream_UnknownTaskTimesOut(t *testing.T) {
	registry := NewTaskRegistry()
	stream := newStream(registry, time.Millisecond, 3)

	statuses, err := collect(t, stream, "never-created")

	assert.ErrorIs(t, err, ErrStreamTimeout)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.Equal(t, domain.WaitingStatus(), s)
	}
	assert.Len(t, statuses, 3)
	assert.Equal(t, 0, registry.Len(), "streaming must not create entries")
}

func TestProgressStream_TimeoutKeepsEntry(t *testing.T) {
	registry := NewTaskRegistry()
	_, err := registry.Create("slow")
	require.NoError(t, err)
	stream := newStream(registry, time.Millisecond, 2)

	statuses, err := collect(t, stream, "slow")

	assert.ErrorIs(t, err, ErrStreamTimeout)
	for _, s := range statuses {
		assert.Equal(t, "Queued", s.Message)
		assert.False(t, s.Done)
	}
	_, ok := registry.Read("slow")
	assert.True(t, ok)
}

func TestProgressStream_TerminalEmittedOnceThenEvicted(t *testing.T) {
	registry := NewTaskRegistry()
	_, err := registry.Create("t1")
	require.NoError(t, err)
	require.NoError(t, registry.Update("t1", domain.Task{Progress: 100, Message: "Complete!", Done: true, Result: strPtr("nobg_a.png")}))
	stream := newStream(registry, time.Millisecond, 3)

	statuses, err := collect(t, stream, "t1")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, domain.TaskStatus{Progress: 100, Message: "Complete!", Done: true, Result: strPtr("nobg_a.png")}, statuses[0])

	again, err := collect(t, stream, "t1")
	assert.ErrorIs(t, err, ErrStreamTimeout)
	for _, s := range again {
		assert.Equal(t, domain.WaitingStatus(), s)
	}
}

func TestProgressStream_UpdateWakesStream(t *testing.T) {
	registry := NewTaskRegistry()
	_, err := registry.Create("t1")
	require.NoError(t, err)
	// The ticker never fires within the test; only registry updates can advance it.
	stream := newStream(registry, time.Hour, 1)

	emitted := make(chan domain.TaskStatus, 8)
	result := make(chan error, 1)
	go func() {
		result <- stream.Follow(context.Background(), "t1", func(s domain.TaskStatus) error {
			emitted <- s
			return nil
		})
	}()

	assert.Equal(t, "Queued", (<-emitted).Message)
	require.NoError(t, registry.Update("t1", domain.Task{Progress: 20, Message: "Analyzing..."}))
	assert.Equal(t, "Analyzing...", (<-emitted).Message)
	require.NoError(t, registry.Update("t1", domain.Task{Progress: 20, Message: "Error: nope", Done: true}))

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish after terminal update")
	}
	final := <-emitted
	assert.True(t, final.Done)
	assert.Nil(t, final.Result)
}

func TestProgressStream_ContextCancel(t *testing.T) {
	registry := NewTaskRegistry()
	_, err := registry.Create("t1")
	require.NoError(t, err)
	stream := newStream(registry, time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = stream.Follow(ctx, "t1", func(domain.TaskStatus) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := registry.Read("t1")
	assert.True(t, ok)
}

func TestProgressStream_EmitErrorStopsStream(t *testing.T) {
	registry := NewTaskRegistry()
	stream := newStream(registry, time.Millisecond, 10)
	gone := errors.New("client gone")

	calls := 0
	err := stream.Follow(context.Background(), "x", func(domain.TaskStatus) error {
		calls++
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, calls)
}

func TestProgressStream_SingleConsumerOfTerminalState(t *testing.T) {
	registry := NewTaskRegistry()
	_, err := registry.Create("t1")
	require.NoError(t, err)
	stream := newStream(registry, 2*time.Millisecond, 20)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		terminals int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = stream.Follow(context.Background(), "t1", func(s domain.TaskStatus) error {
				if s.Done {
					mu.Lock()
					terminals++
					mu.Unlock()
				}
				return nil
			})
		}()
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, registry.Update("t1", domain.Task{Progress: 100, Message: "Complete!", Done: true, Result: strPtr("r.png")}))
	wg.Wait()

	assert.Equal(t, 1, terminals)
	assert.Equal(t, 0, registry.Len())
}
