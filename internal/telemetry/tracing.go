package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/internal/ctxkeys"
	"github.com/BaSui01/httplistener/types"
)

// TracerName is the instrumentation scope of server spans.
const TracerName = "github.com/BaSui01/httplistener"

// Span attributes naming the server and connection that carried a request.
const (
	AttrServer     = attribute.Key("httplistener.server")
	AttrConnection = attribute.Key("httplistener.connection_id")
	AttrDelivery   = attribute.Key("httplistener.delivery")
)

// Tracer starts one server span per request/response exchange. A nil
// provider uses the global one, which is a noop until Init enables
// telemetry.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracer creates a Tracer from tp.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer:     tp.Tracer(TracerName),
		propagator: compositePropagator(),
	}
}

// StartRequest extracts any incoming trace context from req's headers and
// starts a server span for it.
func (t *Tracer) StartRequest(ctx context.Context, req *httpmsg.Request, addr types.ServerAddress) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx = t.propagator.Extract(ctx, propagation.HeaderCarrier(req.Headers.HTTPHeader()))
	ctx, span := t.tracer.Start(ctx, req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.Path),
			semconv.ServerAddress(addr.IP.String()),
			semconv.ServerPort(addr.Port),
			semconv.NetworkProtocolVersion(protocolVersion(req)),
			semconv.ClientAddress(req.RemoteAddr),
		),
	)
	if id, ok := ctxkeys.Server(ctx); ok {
		span.SetAttributes(AttrServer.String(id.String()))
	}
	if connID, ok := ctxkeys.ConnectionID(ctx); ok {
		span.SetAttributes(AttrConnection.String(connID))
	}
	return ctx, span
}

// EndResponse records the response status and delivery outcome on span
// and ends it.
func EndResponse(span trace.Span, status int, err error) {
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(AttrDelivery.String("failed"))
	case status >= 500:
		span.SetStatus(codes.Error, "")
		span.SetAttributes(AttrDelivery.String("completed"))
	default:
		span.SetAttributes(AttrDelivery.String("completed"))
	}
	span.End()
}

func protocolVersion(req *httpmsg.Request) string {
	if req.IsHTTP10() {
		return "1.0"
	}
	return "1.1"
}

// compositePropagator carries W3C trace context and baggage.
func compositePropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}
