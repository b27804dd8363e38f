package observe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Transport wraps an outbound [http.RoundTripper] so that every request:
//
//  1. Runs in a client span named "HTTP <method> <service>".
//  2. Carries W3C Trace Context headers to the remote service.
//  3. Records its latency to [Metrics.HTTPClientDuration].
//  4. Is logged at debug level on completion.
//
// On success the request completes when the response body is closed, so the
// span and the latency include the body read.
//
// service labels the remote dependency, e.g. "game" or "stt". A nil base uses
// [http.DefaultTransport].
func Transport(base http.RoundTripper, service string, m *Metrics) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, service: service, metrics: m, prop: propagation.TraceContext{}}
}

type transport struct {
	base    http.RoundTripper
	service string
	metrics *Metrics
	prop    propagation.TextMapPropagator
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := StartSpan(req.Context(), "HTTP "+req.Method+" "+t.service,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.URL.Path),
			attribute.String("peer.service", t.service),
		),
	)

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)
	t.prop.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		t.finish(ctx, span, req, 0, start, err)
		return resp, err
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))

	// Streamed bodies are read long after the headers arrive, so the span
	// and the latency end when the caller closes the body.
	status := resp.StatusCode
	resp.Body = &trackedBody{
		ReadCloser: resp.Body,
		done: func(readErr error) {
			if readErr != nil {
				span.RecordError(readErr)
			}
			t.finish(ctx, span, req, status, start, readErr)
		},
	}
	return resp, nil
}

func (t *transport) finish(ctx context.Context, span trace.Span, req *http.Request, status int, start time.Time, err error) {
	elapsed := time.Since(start)
	span.End()
	if t.metrics != nil {
		t.metrics.HTTPClientDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(
				attribute.String("service", t.service),
				attribute.String("method", req.Method),
				attribute.Int("status", status),
			),
		)
	}
	Logger(ctx).Debug("outbound request completed",
		"service", t.service,
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"duration", elapsed,
		"err", err,
	)
}

// trackedBody calls done once, on Close or on the first read error other
// than io.EOF.
type trackedBody struct {
	io.ReadCloser
	once sync.Once
	done func(error)
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		b.once.Do(func() { b.done(err) })
	}
	return n, err
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() { b.done(nil) })
	return err
}
