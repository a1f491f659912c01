// 证书等外部文件的变更监听器。
//
// 通过轮询文件修改时间与大小检测变更，同一轮检测到的变更合并为一批回调，
// 例如证书与私钥同时轮换时只触发一次重载。
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// --- 文件监听器类型定义 ---

// FileWatcher polls a fixed set of files and reports changes in batches.
type FileWatcher struct {
	mu sync.RWMutex

	// 配置
	paths    []string
	interval time.Duration
	clock    clock.Clock

	// 状态
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// 回调
	callbacks []func([]FileEvent)

	logger *zap.Logger

	// 上一次观察到的文件状态
	seen map[string]fileState
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// FileEvent represents a file change event
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// FileOp represents file operation types
type FileOp int

const (
	// FileOpCreate 表示文件出现
	FileOpCreate FileOp = iota
	// FileOpWrite 表示文件内容或修改时间变化
	FileOpWrite
	// FileOpRemove 表示文件消失
	FileOpRemove
)

// String returns the string representation of FileOp
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// --- 文件监听器选项 ---

// WatcherOption configures the FileWatcher
type WatcherOption func(*FileWatcher)

// WithPollInterval sets how often the files are checked.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherClock replaces the clock driving the poll loop.
func WithWatcherClock(c clock.Clock) WatcherOption {
	return func(w *FileWatcher) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// --- 文件监听器实现 ---

// NewFileWatcher creates a watcher over paths. The current state of every
// path is recorded immediately, so only later changes are reported.
func NewFileWatcher(paths []string, opts ...WatcherOption) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no paths to watch")
	}

	w := &FileWatcher{
		interval: 5 * time.Second,
		clock:    clock.New(),
		logger:   zap.NewNop(),
		seen:     make(map[string]fileState, len(paths)),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "file_watcher"))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", p, err)
		}
		w.paths = append(w.paths, abs)
		w.seen[abs] = stat(abs)
	}

	return w, nil
}

// OnChange registers a callback invoked with every non-empty batch of events.
func (w *FileWatcher) OnChange(callback func([]FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins polling until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})
	ticker := w.clock.Ticker(w.interval)
	done := w.done
	w.mu.Unlock()

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Poll()
			}
		}
	}()

	w.logger.Info("file watcher started",
		zap.Strings("paths", w.paths),
		zap.Duration("interval", w.interval))

	return nil
}

// Stop halts polling and waits for the loop to exit.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("file watcher stopped")
	return nil
}

// Poll checks every path once, dispatches the batch to the callbacks and
// returns it. A nil result means nothing changed.
func (w *FileWatcher) Poll() []FileEvent {
	now := w.clock.Now()

	w.mu.Lock()
	var events []FileEvent
	for _, p := range w.paths {
		prev := w.seen[p]
		cur := stat(p)
		if op, changed := diff(prev, cur); changed {
			events = append(events, FileEvent{Path: p, Op: op, Timestamp: now})
		}
		w.seen[p] = cur
	}
	callbacks := make([]func([]FileEvent), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		w.logger.Debug("file changed", zap.String("path", e.Path), zap.Stringer("op", e.Op))
	}
	for _, cb := range callbacks {
		w.dispatch(cb, events)
	}
	return events
}

func (w *FileWatcher) dispatch(cb func([]FileEvent), events []FileEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("file watcher callback panicked", zap.Any("panic", r))
		}
	}()
	cb(events)
}

// Paths returns the watched paths
func (w *FileWatcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	result := make([]string, len(w.paths))
	copy(result, w.paths)
	return result
}

// IsRunning returns whether the watcher is running
func (w *FileWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func stat(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func diff(prev, cur fileState) (FileOp, bool) {
	switch {
	case !prev.exists && cur.exists:
		return FileOpCreate, true
	case prev.exists && !cur.exists:
		return FileOpRemove, true
	case cur.exists && (!cur.modTime.Equal(prev.modTime) || cur.size != prev.size):
		return FileOpWrite, true
	default:
		return 0, false
	}
}
