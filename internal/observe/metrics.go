// Package observe provides application-wide observability primitives for
// Namecue: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Namecue metrics.
const meterName = "github.com/kverrall/namecue"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// NarrationDuration tracks cue narration (TTS) latency.
	NarrationDuration metric.Float64Histogram

	// MatchDuration tracks answer evaluation latency.
	MatchDuration metric.Float64Histogram

	// TrialDuration tracks whole-trial duration from first cue to outcome.
	TrialDuration metric.Float64Histogram

	// --- Counters ---

	// CueEscalations counts cue transitions. Use with attribute:
	//   attribute.Int("level", ...)
	CueEscalations metric.Int64Counter

	// TrialOutcomes counts completed trials. Use with attributes:
	//   attribute.String("outcome", "correct"|"revealed"),
	//   attribute.Int("level", ...)
	TrialOutcomes metric.Int64Counter

	// Answers counts evaluated utterances. Use with attribute:
	//   attribute.String("verdict", "correct"|"incorrect")
	Answers metric.Int64Counter

	// ListenRestarts counts silent listening restarts after no-speech
	// timeouts.
	ListenRestarts metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts speech-provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveTrials tracks the number of trials currently in progress.
	ActiveTrials metric.Int64UpDownCounter

	// ActiveSessions tracks the number of live practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech round-trips: narration runs seconds, matching runs milliseconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.NarrationDuration, err = m.Float64Histogram("namecue.narration.duration",
		metric.WithDescription("Latency of cue narration playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchDuration, err = m.Float64Histogram("namecue.match.duration",
		metric.WithDescription("Latency of answer evaluation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TrialDuration, err = m.Float64Histogram("namecue.trial.duration",
		metric.WithDescription("Duration of a trial from first cue to outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CueEscalations, err = m.Int64Counter("namecue.cue.escalations",
		metric.WithDescription("Total cue escalations by target level."),
	); err != nil {
		return nil, err
	}
	if met.TrialOutcomes, err = m.Int64Counter("namecue.trial.outcomes",
		metric.WithDescription("Total completed trials by outcome and final cue level."),
	); err != nil {
		return nil, err
	}
	if met.Answers, err = m.Int64Counter("namecue.answers",
		metric.WithDescription("Total evaluated utterances by verdict."),
	); err != nil {
		return nil, err
	}
	if met.ListenRestarts, err = m.Int64Counter("namecue.listen.restarts",
		metric.WithDescription("Total silent listening restarts after no-speech timeouts."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("namecue.provider.errors",
		metric.WithDescription("Total speech provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTrials, err = m.Int64UpDownCounter("namecue.active_trials",
		metric.WithDescription("Number of trials currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("namecue.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("namecue.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEscalation records a cue escalation to level.
func (m *Metrics) RecordEscalation(ctx context.Context, level int) {
	m.CueEscalations.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("level", level)),
	)
}

// RecordTrialOutcome records a completed trial with its outcome and the cue
// level it ended on.
func (m *Metrics) RecordTrialOutcome(ctx context.Context, outcome string, level int) {
	m.TrialOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.Int("level", level),
		),
	)
}

// RecordAnswer records one evaluated utterance.
func (m *Metrics) RecordAnswer(ctx context.Context, correct bool) {
	verdict := "incorrect"
	if correct {
		verdict = "correct"
	}
	m.Answers.Add(ctx, 1,
		metric.WithAttributes(attribute.String("verdict", verdict)),
	)
}

// RecordProviderError records a speech-provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
