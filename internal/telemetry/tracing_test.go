package telemetry

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/internal/ctxkeys"
	"github.com/BaSui01/httplistener/types"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracer(tp), rec
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracer_RequestSpan(t *testing.T) {
	tracer, rec := newRecordingTracer(t)
	req := &httpmsg.Request{Method: "GET", Path: "/orders", ProtoMajor: 1, ProtoMinor: 1, Headers: httpmsg.NewHeaders(), RemoteAddr: "10.0.0.9:5000"}
	addr := types.NewServerAddress(netip.MustParseAddr("127.0.0.1"), 8081)

	_, span := tracer.StartRequest(context.Background(), req, addr)
	EndResponse(span, 200, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /orders", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	status, ok := attrValue(spans[0], "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(200), status.AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracer_FailedDelivery(t *testing.T) {
	tracer, rec := newRecordingTracer(t)
	req := &httpmsg.Request{Method: "POST", Path: "/upload", ProtoMajor: 1, ProtoMinor: 0, Headers: httpmsg.NewHeaders()}

	_, span := tracer.StartRequest(context.Background(), req, types.ServerAddress{})
	EndResponse(span, 200, errors.New("connection reset"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	delivery, _ := attrValue(spans[0], "httplistener.delivery")
	assert.Equal(t, "failed", delivery.AsString())
	version, _ := attrValue(spans[0], "network.protocol.version")
	assert.Equal(t, "1.0", version.AsString())
}

func TestTracer_ExtractsParentContext(t *testing.T) {
	tracer, rec := newRecordingTracer(t)

	req := &httpmsg.Request{
		Method: "GET", Path: "/", ProtoMajor: 1, ProtoMinor: 1,
		Headers: httpmsg.NewHeaders("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"),
	}
	_, span := tracer.StartRequest(context.Background(), req, types.ServerAddress{})
	EndResponse(span, 204, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
}

func TestTracer_NilIsPassThrough(t *testing.T) {
	var tracer *Tracer
	ctx := context.Background()
	got, span := tracer.StartRequest(ctx, &httpmsg.Request{Headers: httpmsg.NewHeaders()}, types.ServerAddress{})
	assert.Equal(t, ctx, got)
	assert.False(t, span.SpanContext().IsValid())
}

func TestTracer_RecordsServerAndConnection(t *testing.T) {
	tracer, rec := newRecordingTracer(t)
	id := types.ServerIdentifier{Context: "orders", Name: "api"}
	ctx := ctxkeys.WithServer(ctxkeys.WithConnectionID(context.Background(), "conn-7"), id)
	req := &httpmsg.Request{Method: "GET", Path: "/", ProtoMajor: 1, ProtoMinor: 1, Headers: httpmsg.NewHeaders()}

	_, span := tracer.StartRequest(ctx, req, types.ServerAddress{})
	EndResponse(span, 200, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	server, ok := attrValue(spans[0], AttrServer)
	require.True(t, ok)
	assert.Equal(t, id.String(), server.AsString())
	conn, ok := attrValue(spans[0], AttrConnection)
	require.True(t, ok)
	assert.Equal(t, "conn-7", conn.AsString())
	delivery, _ := attrValue(spans[0], AttrDelivery)
	assert.Equal(t, "completed", delivery.AsString())
}
