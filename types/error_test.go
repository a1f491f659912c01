package types

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrServerCreation, "bind failed").
		WithCause(root).
		WithHTTPStatus(500)

	assert.Equal(t, ErrServerCreation, GetErrorCode(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, 500, err.HTTPStatus)
	assert.Equal(t, "[SERVER_CREATION] bind failed: root", err.Error())
}

func TestError_WithoutCause(t *testing.T) {
	t.Parallel()

	err := NewError(ErrNotInitialized, "registry not initialized")
	assert.Equal(t, "[NOT_INITIALIZED] registry not initialized", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestIsErrorCode_WalksWrappedCauses(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrTransportIO, "socket reset")
	outer := NewError(ErrServerCreation, "could not start").WithCause(inner)
	wrapped := fmt.Errorf("registry: %w", outer)

	assert.True(t, IsErrorCode(wrapped, ErrServerCreation))
	assert.True(t, IsErrorCode(wrapped, ErrTransportIO))
	assert.False(t, IsErrorCode(wrapped, ErrServerNotFound))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrServerCreation))
	assert.False(t, IsErrorCode(nil, ErrServerCreation))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()

	addr := NewServerAddress(netip.MustParseAddr("127.0.0.1"), 8081)
	id := ServerIdentifier{Context: "app", Name: "listener"}

	exists := NewServerAlreadyExistsError(addr)
	assert.Equal(t, ErrServerAlreadyExists, exists.Code)
	assert.Contains(t, exists.Error(), "127.0.0.1:8081")

	missing := NewServerNotFoundError(id)
	assert.Equal(t, ErrServerNotFound, missing.Code)
	assert.Contains(t, missing.Error(), "app/listener")

	cause := errors.New("no such host")
	creation := NewServerCreationError("could not resolve", cause)
	assert.ErrorIs(t, creation, cause)
}
