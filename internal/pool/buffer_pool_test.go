package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool_GetReturnsFullLength(t *testing.T) {
	p := NewBufferPool(64)
	assert.Equal(t, 64, p.Size())

	b := p.Get()
	require.NotNil(t, b)
	assert.Len(t, *b, 64)

	*b = (*b)[:10]
	p.Put(b)

	again := p.Get()
	assert.Len(t, *again, 64)
	assert.Equal(t, int64(2), p.Stats().Gets)
}

func TestBufferPool_PutDropsForeignBuffers(t *testing.T) {
	p := NewBufferPool(32)

	foreign := make([]byte, 16)
	p.Put(&foreign)
	p.Put(nil)

	b := p.Get()
	assert.Equal(t, 32, cap(*b))
}

func TestBufferPoolStats_HitRate(t *testing.T) {
	assert.Zero(t, BufferPoolStats{}.HitRate())
	assert.InDelta(t, 0.75, BufferPoolStats{Gets: 4, News: 1}.HitRate(), 1e-9)
}

func TestChunkBuffers_SharedPerSize(t *testing.T) {
	a := ChunkBuffers(1024)
	b := ChunkBuffers(1024)
	c := ChunkBuffers(2048)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2048, c.Size())
}
