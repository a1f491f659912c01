package response

import (
	"bytes"
	"errors"
	"io"
	"net/http/httputil"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/httplistener/testutil/mocks"
)

// Property: the chunked framing always decodes back to the original body
// and uses one write per chunk plus the header block and the terminator.
func TestProperty_ChunkedFramingRoundTrips(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		body := rapid.SliceOfN(rapid.Byte(), 0, 300).Draw(rt, "body")
		chunk := rapid.IntRange(1, 64).Draw(rt, "chunk")

		conn := mocks.NewMockConnection()
		cb := mocks.NewRecordingStatusCallback()
		h := NewStreamingHandler(conn, http11(), streamingResponse(bytes.NewReader(body)), cb, persistent(chunk))
		h.Start()

		writes := conn.Writes()
		chunks := (len(body) + chunk - 1) / chunk
		require.Len(rt, writes, chunks+2)

		var framed bytes.Buffer
		for _, w := range writes[1:] {
			framed.Write(w)
		}
		decoded, err := io.ReadAll(httputil.NewChunkedReader(&framed))
		require.NoError(rt, err)
		assert.Equal(rt, body, decoded)
		assert.Equal(rt, 1, cb.Successes())
	})
}

// Property: whichever read fails, the handler ends failed with exactly one
// callback and one stream close, and never reads past the failure.
func TestProperty_FailureIsTerminalAndSingle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(1, 64).Draw(rt, "size")
		chunk := rapid.IntRange(1, 16).Draw(rt, "chunk")
		reads := (size + chunk - 1) / chunk
		failOn := rapid.IntRange(1, reads).Draw(rt, "failOn")
		extraFailures := rapid.IntRange(0, 5).Draw(rt, "extraFailures")

		stream := newTrackedStream(strings.Repeat("x", size))
		stream.failOn = int32(failOn)
		stream.failErr = errors.New("source failed")
		conn := mocks.NewMockConnection()
		cb := mocks.NewRecordingStatusCallback()

		h := NewStreamingHandler(conn, http11(), streamingResponse(stream), cb, persistent(chunk))
		h.Start()
		for i := 0; i < extraFailures; i++ {
			h.Failed(errors.New("extra"))
		}

		assert.Equal(rt, StateFailed, h.State())
		assert.Equal(rt, 1, cb.Calls())
		assert.Equal(rt, int32(1), stream.closes.Load())
		assert.Equal(rt, int32(failOn), stream.reads.Load())
	})
}
