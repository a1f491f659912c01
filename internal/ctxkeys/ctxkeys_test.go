package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/httplistener/types"
)

func TestConnectionAndRequestIDs(t *testing.T) {
	ctx := context.Background()

	_, ok := ConnectionID(ctx)
	assert.False(t, ok)
	_, ok = RequestID(WithRequestID(ctx, ""))
	assert.False(t, ok)

	ctx = WithConnectionID(ctx, "conn-1")
	ctx = WithRequestID(ctx, "req-1")

	id, ok := ConnectionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "conn-1", id)

	id, ok = RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestServer(t *testing.T) {
	_, ok := Server(context.Background())
	assert.False(t, ok)

	want := types.ServerIdentifier{Context: "app", Name: "http"}
	got, ok := Server(WithServer(context.Background(), want))
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestPathParams(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, PathParams(ctx))
	assert.Equal(t, ctx, WithPathParams(ctx, nil))

	ctx = WithPathParams(ctx, map[string]string{"id": "42"})
	assert.Equal(t, "42", PathParams(ctx)["id"])
}
