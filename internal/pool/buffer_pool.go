package pool

import (
	"sync"
	"sync/atomic"
)

// BufferPool hands out byte slices of a fixed size. Slices of any other
// capacity are dropped on Put.
type BufferPool struct {
	pool sync.Pool
	size int

	gets atomic.Int64
	news atomic.Int64
}

// NewBufferPool creates a pool of size-byte buffers.
func NewBufferPool(size int) *BufferPool {
	p := &BufferPool{size: size}
	p.pool.New = func() any {
		p.news.Add(1)
		b := make([]byte, size)
		return &b
	}
	return p
}

// Size returns the length of buffers handed out by Get.
func (p *BufferPool) Size() int {
	return p.size
}

// Get returns a buffer of length Size.
func (p *BufferPool) Get() *[]byte {
	p.gets.Add(1)
	b := p.pool.Get().(*[]byte)
	*b = (*b)[:p.size]
	return b
}

// Put returns a buffer to the pool.
func (p *BufferPool) Put(b *[]byte) {
	if b == nil || cap(*b) != p.size {
		return
	}
	p.pool.Put(b)
}

// Stats returns pool statistics.
func (p *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{Gets: p.gets.Load(), News: p.news.Load()}
}

// BufferPoolStats contains pool statistics.
type BufferPoolStats struct {
	Gets int64 `json:"gets"`
	News int64 `json:"news"`
}

// HitRate returns the share of Gets served without allocating.
func (s BufferPoolStats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}

var (
	chunkPoolsMu sync.Mutex
	chunkPools   = map[int]*BufferPool{}
)

// ChunkBuffers returns the process-wide pool for buffers of size bytes.
func ChunkBuffers(size int) *BufferPool {
	chunkPoolsMu.Lock()
	defer chunkPoolsMu.Unlock()
	p, ok := chunkPools[size]
	if !ok {
		p = NewBufferPool(size)
		chunkPools[size] = p
	}
	return p
}
