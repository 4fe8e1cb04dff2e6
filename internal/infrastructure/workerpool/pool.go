package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/pixelift/backend/internal/infrastructure/logger"
)

var (
	ErrPoolClosed    = errors.New("pool: closed")
	ErrPoolSaturated = errors.New("pool: queue is full")
	ErrJobPanicked   = errors.New("pool: job panicked")
)

// Job is a unit of blocking work. ctx is cancelled only when the pool is forced to stop.
type Job func(ctx context.Context) error

// Handle resolves once its job has returned.
type Handle struct {
	done chan struct{}
	err  error
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the job outcome. It is nil until Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type queuedJob struct {
	job    Job
	handle *Handle
}

type Stats struct {
	Slots  int `json:"slots"`
	Busy   int `json:"busy"`
	Queued int `json:"queued"`
}

// Pool runs jobs on a fixed number of goroutines. Submit never waits for a free slot.
type Pool struct {
	slots  int
	queue  chan queuedJob
	busy   atomic.Int32
	logger *logger.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(slots, queueSize int, log *logger.Logger) *Pool {
	if slots <= 0 {
		slots = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		slots:  slots,
		queue:  make(chan queuedJob, queueSize),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < slots; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

func (p *Pool) worker(slot int) {
	defer p.wg.Done()

	for qj := range p.queue {
		p.run(slot, qj)
	}
}

func (p *Pool) run(slot int, qj queuedJob) {
	p.busy.Add(1)
	defer p.busy.Add(-1)
	defer close(qj.handle.done)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorw("pool_job_panic", "slot", slot, "panic", r, "stacktrace", string(debug.Stack()))
			qj.handle.err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	qj.handle.err = qj.job(p.ctx)
}

// Submit queues job and returns its handle immediately.
func (p *Pool) Submit(job Job) (*Handle, error) {
	if job == nil {
		return nil, errors.New("pool: nil job")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	h := &Handle{done: make(chan struct{})}
	select {
	case p.queue <- queuedJob{job: job, handle: h}:
		return h, nil
	default:
		return nil, ErrPoolSaturated
	}
}

// Stop rejects new jobs, lets queued and running jobs finish, and returns once every
// slot has exited. If ctx expires first the job context is cancelled and ctx.Err returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) Stats() Stats {
	return Stats{
		Slots:  p.slots,
		Busy:   int(p.busy.Load()),
		Queued: len(p.queue),
	}
}
