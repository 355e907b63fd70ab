package amqp

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// tableCarrier adapts amqp091.Table to propagation.TextMapCarrier.
// This enables trace context propagation through AMQP message headers.
//
// Table values are typed any; Get ignores values that are not strings so a
// malformed header never becomes an extraction error.
type tableCarrier amqp091.Table

// Get returns the string value for the given key, or empty string if the key
// is absent or holds a non-string value.
func (c tableCarrier) Get(key string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	return ""
}

// Set stores the key-value pair in the headers.
func (c tableCarrier) Set(key, value string) {
	c[key] = value
}

// Keys returns all keys in the headers.
func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	return keys
}

// cloneTable returns a shallow copy of t. The publish interceptor injects
// into a copy so the caller's header map is never mutated.
func cloneTable(t amqp091.Table) amqp091.Table {
	clone := make(amqp091.Table, len(t)+2)
	for k, v := range t {
		clone[k] = v
	}

	return clone
}

// InjectTable injects trace context into AMQP message headers.
// Existing unrelated keys are left untouched.
// Uses the globally registered TextMapPropagator.
func InjectTable(ctx context.Context, headers amqp091.Table) {
	if headers == nil {
		return
	}

	otel.GetTextMapPropagator().Inject(ctx, tableCarrier(headers))
}

// InjectTableWithPropagator injects trace context using a specific propagator.
func InjectTableWithPropagator(ctx context.Context, headers amqp091.Table, prop propagation.TextMapPropagator) {
	if headers == nil {
		return
	}

	prop.Inject(ctx, tableCarrier(headers))
}

// ExtractTable extracts trace context from AMQP message headers.
// Returns a new context containing the extracted trace information; if the
// headers carry no (or malformed) trace context, the input context is
// returned unchanged so the message is still traced as a root.
// Uses the globally registered TextMapPropagator.
func ExtractTable(ctx context.Context, headers amqp091.Table) context.Context {
	if headers == nil {
		return ctx
	}

	return otel.GetTextMapPropagator().Extract(ctx, tableCarrier(headers))
}

// ExtractTableWithPropagator extracts trace context using a specific propagator.
func ExtractTableWithPropagator(
	ctx context.Context,
	headers amqp091.Table,
	prop propagation.TextMapPropagator,
) context.Context {
	if headers == nil {
		return ctx
	}

	return prop.Extract(ctx, tableCarrier(headers))
}
