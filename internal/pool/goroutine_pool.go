// Package pool provides the goroutine pools a listener runs on and pooled
// buffers for response chunks.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpserver"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task represents a unit of work.
type Task = httpserver.Task

// GoroutinePool runs tasks on a bounded, elastic set of worker goroutines.
// Workers are spawned on demand up to MaxWorkers and exit after IdleTimeout
// without work, keeping at least one alive while the pool is open.
type GoroutinePool struct {
	name        string
	maxWorkers  int
	taskQueue   chan taskWrapper
	workerCount atomic.Int32
	activeCount atomic.Int32
	closed      atomic.Bool
	// mu keeps Stop from closing taskQueue under a concurrent Submit.
	mu sync.RWMutex
	wg sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	idleTimeout  time.Duration
	panicHandler func(any)
	logger       *zap.Logger
}

type taskWrapper struct {
	task   Task
	ctx    context.Context
	result chan error
}

// GoroutinePoolConfig configures the pool.
type GoroutinePoolConfig struct {
	Name         string        `yaml:"name" json:"name"`
	MaxWorkers   int           `yaml:"max_workers" json:"max_workers"`
	QueueSize    int           `yaml:"queue_size" json:"queue_size"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	PanicHandler func(any)     `yaml:"-" json:"-"`
}

// DefaultGoroutinePoolConfig returns defaults suited to I/O bound work.
func DefaultGoroutinePoolConfig() GoroutinePoolConfig {
	return GoroutinePoolConfig{
		Name:        "worker",
		MaxWorkers:  256,
		QueueSize:   4096,
		IdleTimeout: 60 * time.Second,
	}
}

// NewGoroutinePool creates a pool. Non-positive sizes fall back to the defaults.
func NewGoroutinePool(config GoroutinePoolConfig, logger *zap.Logger) *GoroutinePool {
	def := DefaultGoroutinePoolConfig()
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = def.MaxWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}
	if config.Name == "" {
		config.Name = def.Name
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &GoroutinePool{
		name:         config.Name,
		maxWorkers:   config.MaxWorkers,
		taskQueue:    make(chan taskWrapper, config.QueueSize),
		idleTimeout:  config.IdleTimeout,
		panicHandler: config.PanicHandler,
		logger:       logger.With(zap.String("component", "pool"), zap.String("pool", config.Name)),
	}
	p.logger.Debug("pool created",
		zap.Int("max_workers", config.MaxWorkers),
		zap.Int("queue_size", config.QueueSize))
	return p
}

// Name returns the pool name.
func (p *GoroutinePool) Name() string {
	return p.name
}

// Submit queues a task without waiting for it to run.
func (p *GoroutinePool) Submit(ctx context.Context, task Task) error {
	return p.enqueue(taskWrapper{task: task, ctx: ctx})
}

// SubmitWait submits a task and waits for completion.
func (p *GoroutinePool) SubmitWait(ctx context.Context, task Task) error {
	wrapper := taskWrapper{task: task, ctx: ctx, result: make(chan error, 1)}
	if err := p.enqueue(wrapper); err != nil {
		return err
	}

	select {
	case err := <-wrapper.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *GoroutinePool) enqueue(wrapper taskWrapper) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	select {
	case p.taskQueue <- wrapper:
		p.ensureWorker()
		return nil
	default:
	}

	// Queue full: a new worker may drain it.
	if p.trySpawnWorker() {
		select {
		case p.taskQueue <- wrapper:
			return nil
		default:
		}
	}
	p.rejected.Add(1)
	return fmt.Errorf("%s: %w", p.name, ErrPoolFull)
}

func (p *GoroutinePool) ensureWorker() {
	if p.activeCount.Load() >= p.workerCount.Load() {
		p.trySpawnWorker()
	}
}

func (p *GoroutinePool) trySpawnWorker() bool {
	for {
		current := p.workerCount.Load()
		if current >= int32(p.maxWorkers) {
			return false
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return true
		}
	}
}

func (p *GoroutinePool) worker() {
	defer p.wg.Done()

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case wrapper, ok := <-p.taskQueue:
			if !ok {
				p.workerCount.Add(-1)
				return
			}
			p.run(wrapper)
			timer.Reset(p.idleTimeout)

		case <-timer.C:
			current := p.workerCount.Load()
			if current > 1 && len(p.taskQueue) == 0 && p.workerCount.CompareAndSwap(current, current-1) {
				return
			}
			timer.Reset(p.idleTimeout)
		}
	}
}

func (p *GoroutinePool) run(wrapper taskWrapper) {
	p.activeCount.Add(1)
	err := p.executeTask(wrapper)
	p.activeCount.Add(-1)

	if wrapper.result != nil {
		wrapper.result <- err
		close(wrapper.result)
	}

	if err != nil {
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
	}
}

func (p *GoroutinePool) executeTask(wrapper taskWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			p.logger.Error("task panicked", zap.Any("panic", r))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	ctx := wrapper.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return wrapper.task(ctx)
}

// Stop rejects new tasks, lets queued tasks finish, and waits for the
// workers to exit. Repeated calls are no-ops.
func (p *GoroutinePool) Stop() {
	_ = p.StopContext(context.Background())
}

// StopContext is Stop with a bounded wait. When ctx ends first the pool is
// still closed, the remaining workers exit in the background and ctx.Err()
// is returned. Repeated calls wait again for the same workers.
func (p *GoroutinePool) StopContext(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed.Swap(true) {
		close(p.taskQueue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("pool stop timed out",
			zap.Int32("workers", p.workerCount.Load()),
			zap.Error(ctx.Err()))
		return fmt.Errorf("%s: %w", p.name, ctx.Err())
	}
}

// IsStopped reports whether Stop has been called.
func (p *GoroutinePool) IsStopped() bool {
	return p.closed.Load()
}

// Stats returns pool statistics.
func (p *GoroutinePool) Stats() GoroutinePoolStats {
	return GoroutinePoolStats{
		Workers:   int(p.workerCount.Load()),
		Active:    int(p.activeCount.Load()),
		Queued:    len(p.taskQueue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// GoroutinePoolStats contains pool statistics.
type GoroutinePoolStats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

var _ httpserver.Scheduler = (*GoroutinePool)(nil)
