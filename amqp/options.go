package amqp

import (
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/reactphp-inspector/bunny/internal/tracker"
)

const instrumentationName = "bunny/amqp"

// disabledEnvVar holds a comma-separated list of instrumentation names for
// which tracing is explicitly switched off.
const disabledEnvVar = "OTEL_GO_DISABLED_INSTRUMENTATIONS"

// options holds configuration for tracing wrappers.
type options struct {
	tracerName string
	prop       propagation.TextMapPropagator
	mp         metric.MeterProvider
	metrics    bool   // Enable per-operation counters and duration histogram
	queue      string // Override queue name for consumer spans
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		tracerName: instrumentationName,
		prop:       nil, // Will use global propagator
	}
}

// Option configures tracing behavior.
type Option func(*options)

// WithTracerName sets a custom tracer name.
// Default is the package import path.
func WithTracerName(name string) Option {
	return func(o *options) {
		o.tracerName = name
	}
}

// WithPropagator sets a custom propagator for context injection/extraction.
// If not set, the global propagator is used.
func WithPropagator(prop propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.prop = prop
	}
}

// WithQueue sets an explicit queue name for consumer span naming and
// attributes. Use this when the queue cannot be passed at the call site,
// e.g. for deliveries wrapped outside of a traced channel.
func WithQueue(queue string) Option {
	return func(o *options) {
		o.queue = queue
	}
}

// WithMetrics enables per-operation count and duration metrics.
// Default is false.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metrics = enabled
	}
}

// WithMeterProvider sets the MeterProvider used for operation metrics.
// If not set, the global MeterProvider is used. Implies WithMetrics(true).
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.mp = mp
		o.metrics = true
	}
}

// applyOptions applies option functions to the default options.
func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// getTracer returns a tracer from the provider with the configured name.
func getTracer(tp trace.TracerProvider, opts options) trace.Tracer {
	if opts.tracerName != instrumentationName {
		if tp == nil {
			tp = otel.GetTracerProvider()
		}

		return tp.Tracer(opts.tracerName)
	}

	// Use global tracer if configured
	if t := tracker.Tracer(); t != nil {
		return t
	}

	// Fallback to default tracer if no provider is provided
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	// Use tracer with instrumentation name
	return tp.Tracer(opts.tracerName)
}

// getPropagator returns the configured or global propagator.
func getPropagator(opts options) propagation.TextMapPropagator {
	if opts.prop != nil {
		return opts.prop
	}

	return otel.GetTextMapPropagator()
}

// instrumentationDisabled reports whether this instrumentation is switched
// off via the OTEL_GO_DISABLED_INSTRUMENTATIONS environment variable.
// Matching is case-insensitive; both "bunny" and "bunny/amqp" disable it.
func instrumentationDisabled() bool {
	v := os.Getenv(disabledEnvVar)
	if v == "" {
		return false
	}

	for name := range strings.SplitSeq(v, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "bunny", instrumentationName:
			return true
		}
	}

	return false
}
