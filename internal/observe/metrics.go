// Package observe provides the client's observability primitives:
// OpenTelemetry metrics and tracing, trace-aware logging, and an HTTP
// transport that instruments every call to the remote services.
//
// Metrics are exported through a Prometheus bridge set up by [InitProvider].
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/outwit"

// Metrics holds the application's metric instruments.
type Metrics struct {
	// TurnDuration tracks the full send-turn round trip, including audio
	// collection.
	TurnDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text latency.
	STTDuration metric.Float64Histogram

	// StreamDuration tracks how long collecting a reply audio stream takes.
	StreamDuration metric.Float64Histogram

	// Turns counts send-turn attempts. Attribute "status" is "ok" or the
	// error kind.
	Turns metric.Int64Counter

	// Cycles counts input cycles by outcome ("dispatched", "suppressed") and
	// suppression reason.
	Cycles metric.Int64Counter

	// Transcriptions counts speech-to-text calls by status.
	Transcriptions metric.Int64Counter

	// StreamFragments counts audio stream fragments. Attribute "status" is
	// "decoded" or "skipped".
	StreamFragments metric.Int64Counter

	// Games counts started and finished games. Attribute "event" is
	// "started", "won", or "lost".
	Games metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by breaker name
	// and target state.
	BreakerTransitions metric.Int64Counter

	// HTTPClientDuration tracks outbound HTTP latency by service, method,
	// and status code.
	HTTPClientDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds. Turns can take
// up to two minutes, so the upper end is wider than for typical RPCs.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	if met.TurnDuration, err = histogram("outwit.turn.duration", "Latency of a complete game turn."); err != nil {
		return nil, err
	}
	if met.STTDuration, err = histogram("outwit.stt.duration", "Latency of speech-to-text transcription."); err != nil {
		return nil, err
	}
	if met.StreamDuration, err = histogram("outwit.stream.duration", "Time spent collecting a reply audio stream."); err != nil {
		return nil, err
	}
	if met.HTTPClientDuration, err = histogram("outwit.http.client.duration", "Outbound HTTP latency by service, method, and status."); err != nil {
		return nil, err
	}

	if met.Turns, err = m.Int64Counter("outwit.turns",
		metric.WithDescription("Game turns sent, by status."),
	); err != nil {
		return nil, err
	}
	if met.Cycles, err = m.Int64Counter("outwit.input.cycles",
		metric.WithDescription("Input cycles by outcome and suppression reason."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("outwit.stt.transcriptions",
		metric.WithDescription("Speech-to-text calls by status."),
	); err != nil {
		return nil, err
	}
	if met.StreamFragments, err = m.Int64Counter("outwit.stream.fragments",
		metric.WithDescription("Reply audio stream fragments by status."),
	); err != nil {
		return nil, err
	}
	if met.Games, err = m.Int64Counter("outwit.games",
		metric.WithDescription("Games started and finished."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("outwit.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Call it after [InitProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn records one send-turn attempt.
func (m *Metrics) RecordTurn(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Turns.Add(ctx, 1, attrs)
	m.TurnDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordTranscription records one speech-to-text call.
func (m *Metrics) RecordTranscription(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Transcriptions.Add(ctx, 1, attrs)
	m.STTDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordCycle records the outcome of one input cycle. reason is empty for
// dispatched cycles.
func (m *Metrics) RecordCycle(ctx context.Context, outcome, reason string) {
	m.Cycles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

// RecordStream records one collected audio stream.
func (m *Metrics) RecordStream(ctx context.Context, decoded, skipped int, d time.Duration) {
	if decoded > 0 {
		m.StreamFragments.Add(ctx, int64(decoded), metric.WithAttributes(attribute.String("status", "decoded")))
	}
	if skipped > 0 {
		m.StreamFragments.Add(ctx, int64(skipped), metric.WithAttributes(attribute.String("status", "skipped")))
	}
	m.StreamDuration.Record(ctx, d.Seconds())
}

// RecordGame records a game lifecycle event.
func (m *Metrics) RecordGame(ctx context.Context, event, difficulty string) {
	m.Games.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("difficulty", difficulty),
	))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("to", to),
	))
}
