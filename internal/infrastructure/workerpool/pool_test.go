package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitHandle(t *testing.T, h *Handle) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := h.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "job did not finish in time")
	return err
}

func TestPool_RunsJobs(t *testing.T) {
	p := New(2, 8, logger.NewNop())
	defer p.Stop(context.Background())

	ok, err := p.Submit(func(context.Context) error { return nil })
	require.NoError(t, err)
	boom := errors.New("boom")
	failed, err := p.Submit(func(context.Context) error { return boom })
	require.NoError(t, err)

	assert.NoError(t, waitHandle(t, ok))
	assert.ErrorIs(t, waitHandle(t, failed), boom)
	assert.ErrorIs(t, failed.Err(), boom)
}

func TestPool_PanicIsContained(t *testing.T) {
	p := New(1, 4, logger.NewNop())
	defer p.Stop(context.Background())

	h, err := p.Submit(func(context.Context) error { panic("kaboom") })
	require.NoError(t, err)
	assert.ErrorIs(t, waitHandle(t, h), ErrJobPanicked)

	next, err := p.Submit(func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, waitHandle(t, next), "slot must survive a panicking job")
}

func TestPool_BoundedConcurrency(t *testing.T) {
	const slots = 2
	p := New(slots, 16, logger.NewNop())
	defer p.Stop(context.Background())

	var running, peak atomic.Int32
	var handles []*Handle
	for i := 0; i < 8; i++ {
		h, err := p.Submit(func(context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		require.NoError(t, waitHandle(t, h))
	}
	assert.LessOrEqual(t, peak.Load(), int32(slots))
}

func TestPool_SubmitDoesNotBlockWhenSaturated(t *testing.T) {
	p := New(1, 1, logger.NewNop())
	started := make(chan struct{})
	release := make(chan struct{})

	running, err := p.Submit(func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	<-started

	queued, err := p.Submit(func(context.Context) error { return nil })
	require.NoError(t, err)

	_, err = p.Submit(func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolSaturated)

	stats := p.Stats()
	assert.Equal(t, Stats{Slots: 1, Busy: 1, Queued: 1}, stats)

	close(release)
	assert.NoError(t, waitHandle(t, running))
	assert.NoError(t, waitHandle(t, queued))
	require.NoError(t, p.Stop(context.Background()))
}

func TestPool_StopDrainsQueueAndRejects(t *testing.T) {
	p := New(1, 4, logger.NewNop())

	var done atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := p.Submit(func(context.Context) error {
			time.Sleep(time.Millisecond)
			done.Add(1)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int32(3), done.Load())

	_, err := p.Submit(func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.NoError(t, p.Stop(context.Background()), "second stop is a no-op")
}

func TestPool_StopDeadlineCancelsJobs(t *testing.T) {
	p := New(1, 1, logger.NewNop())

	h, err := p.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, waitHandle(t, h), context.Canceled)
}

func TestPool_NilJob(t *testing.T) {
	p := New(1, 1, logger.NewNop())
	defer p.Stop(context.Background())

	_, err := p.Submit(nil)
	assert.Error(t, err)
}
