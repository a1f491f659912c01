package transport

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpserver"
)

// DefaultSweepInterval is how often idle connections are looked for.
const DefaultSweepInterval = time.Second

// IdleReaper closes connections that saw no I/O for longer than their idle
// timeout. Sweeps run on the idle-timeout scheduler.
type IdleReaper struct {
	clock    clock.Clock
	pool     httpserver.Scheduler
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	conns map[*Conn]time.Duration

	onReap  func(c *Conn)
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewIdleReaper creates a reaper. A nil clock uses the wall clock.
func NewIdleReaper(pool httpserver.Scheduler, interval time.Duration, clk clock.Clock, logger *zap.Logger) *IdleReaper {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdleReaper{
		clock:    clk,
		pool:     pool,
		interval: interval,
		logger:   logger.With(zap.String("component", "idle_reaper")),
		conns:    make(map[*Conn]time.Duration),
		stopCh:   make(chan struct{}),
	}
}

// Clock returns the clock connections should record activity with.
func (r *IdleReaper) Clock() clock.Clock {
	return r.clock
}

// OnReap sets a hook called for every connection closed as idle.
func (r *IdleReaper) OnReap(fn func(c *Conn)) {
	r.mu.Lock()
	r.onReap = fn
	r.mu.Unlock()
}

// Track watches c. A non-positive timeout means the connection never idles out.
func (r *IdleReaper) Track(c *Conn, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	r.mu.Lock()
	r.conns[c] = timeout
	r.mu.Unlock()
}

// Untrack stops watching c.
func (r *IdleReaper) Untrack(c *Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
}

// Tracked returns the number of watched connections.
func (r *IdleReaper) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Start runs the sweep ticker until Stop.
func (r *IdleReaper) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := r.clock.Ticker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.schedule()
			}
		}
	}()
}

func (r *IdleReaper) schedule() {
	if r.pool == nil {
		r.Sweep()
		return
	}
	err := r.pool.Submit(context.Background(), func(context.Context) error {
		r.Sweep()
		return nil
	})
	if err != nil {
		r.logger.Debug("idle sweep not scheduled", zap.Error(err))
	}
}

// Sweep closes every tracked connection idle past its timeout and returns
// how many were closed.
func (r *IdleReaper) Sweep() int {
	now := r.clock.Now()

	r.mu.Lock()
	var expired []*Conn
	for c, timeout := range r.conns {
		if c.IsClosed() {
			delete(r.conns, c)
			continue
		}
		if c.IsProcessing() {
			continue
		}
		if now.Sub(c.IdleSince()) >= timeout {
			expired = append(expired, c)
			delete(r.conns, c)
		}
	}
	onReap := r.onReap
	r.mu.Unlock()

	for _, c := range expired {
		r.logger.Debug("closing idle connection", zap.String("conn_id", c.ID()))
		_ = c.Close()
		if onReap != nil {
			onReap(c)
		}
	}
	return len(expired)
}

// Stop ends the ticker. Tracked connections are left open.
func (r *IdleReaper) Stop() {
	r.stopped.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}
