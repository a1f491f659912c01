package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/httplistener/httpserver"
)

// InlineScheduler 在调用方 goroutine 上同步执行任务，可注入拒绝错误
type InlineScheduler struct {
	name      string
	submitted atomic.Int64
	stopped   atomic.Bool

	mu        sync.Mutex
	rejectErr error
}

// NewInlineScheduler 创建同步调度器
func NewInlineScheduler(name string) *InlineScheduler {
	return &InlineScheduler{name: name}
}

// RejectWith 之后的 Submit 都返回 err
func (s *InlineScheduler) RejectWith(err error) *InlineScheduler {
	s.mu.Lock()
	s.rejectErr = err
	s.mu.Unlock()
	return s
}

func (s *InlineScheduler) Name() string {
	return s.name
}

func (s *InlineScheduler) Submit(ctx context.Context, task httpserver.Task) error {
	s.mu.Lock()
	err := s.rejectErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.submitted.Add(1)
	_ = task(ctx)
	return nil
}

func (s *InlineScheduler) Stop() {
	s.stopped.Store(true)
}

// Submitted 返回已执行的任务数
func (s *InlineScheduler) Submitted() int64 {
	return s.submitted.Load()
}

// IsStopped 返回 Stop 是否已被调用
func (s *InlineScheduler) IsStopped() bool {
	return s.stopped.Load()
}

var _ httpserver.Scheduler = (*InlineScheduler)(nil)
