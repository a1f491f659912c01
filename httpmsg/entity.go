package httpmsg

import (
	"bytes"
	"io"
)

// Entity is the body of a message: empty, a fixed byte buffer, or a stream
// of unknown length.
type Entity interface {
	// IsStreaming reports whether the body must be read from a stream.
	IsStreaming() bool
	// Bytes returns the whole body for fixed entities.
	Bytes() []byte
	// Reader returns the stream for streaming entities, and a reader over
	// the bytes otherwise.
	Reader() io.Reader
	// Length returns the body length, or -1 when unknown.
	Length() int64
}

// EmptyEntity is a body with no content.
type EmptyEntity struct{}

func (EmptyEntity) IsStreaming() bool { return false }
func (EmptyEntity) Bytes() []byte { return nil }
func (EmptyEntity) Reader() io.Reader { return bytes.NewReader(nil) }
func (EmptyEntity) Length() int64 { return 0 }

// ByteArrayEntity holds a fixed body.
type ByteArrayEntity struct {
	content []byte
}

// NewByteArrayEntity wraps content without copying it.
func NewByteArrayEntity(content []byte) *ByteArrayEntity {
	return &ByteArrayEntity{content: content}
}

func (e *ByteArrayEntity) IsStreaming() bool { return false }
func (e *ByteArrayEntity) Bytes() []byte { return e.content }
func (e *ByteArrayEntity) Reader() io.Reader { return bytes.NewReader(e.content) }
func (e *ByteArrayEntity) Length() int64 { return int64(len(e.content)) }

// InputStreamEntity is a body produced by a stream. If the stream is also an
// io.Closer it is closed once the message has been sent or has failed.
type InputStreamEntity struct {
	stream io.Reader
	length int64
}

// NewInputStreamEntity wraps a stream of unknown length.
func NewInputStreamEntity(stream io.Reader) *InputStreamEntity {
	return &InputStreamEntity{stream: stream, length: -1}
}

// NewSizedInputStreamEntity wraps a stream whose length is known up front.
func NewSizedInputStreamEntity(stream io.Reader, length int64) *InputStreamEntity {
	return &InputStreamEntity{stream: stream, length: length}
}

func (e *InputStreamEntity) IsStreaming() bool { return true }
func (e *InputStreamEntity) Bytes() []byte { return nil }
func (e *InputStreamEntity) Reader() io.Reader { return e.stream }
func (e *InputStreamEntity) Length() int64 { return e.length }
