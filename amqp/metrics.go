package amqp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// operationMetrics records per-operation counters and latency.
// A nil *operationMetrics is valid and records nothing.
type operationMetrics struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

// newOperationMetrics builds the metric instruments when metrics are enabled.
// Instrument creation failures are reported via otel.Handle and degrade to
// no metrics; they never affect the wrapped channel operations.
func newOperationMetrics(o options) *operationMetrics {
	if !o.metrics {
		return nil
	}

	mp := o.mp
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(o.tracerName)

	count, err := meter.Int64Counter("messaging.client.operation.count",
		metric.WithDescription("Number of AMQP channel operations"),
	)
	if err != nil {
		otel.Handle(err)
		return nil
	}

	duration, err := meter.Float64Histogram("messaging.client.operation.duration",
		metric.WithDescription("Duration of AMQP channel operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
		return nil
	}

	return &operationMetrics{count: count, duration: duration}
}

// record counts one operation and records its duration.
func (m *operationMetrics) record(ctx context.Context, opType, destination string, start time.Time, err error) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMessagingSystem, messagingSystem),
		attribute.String(attrMessagingOperationType, opType),
		attribute.String(attrMessagingDestinationName, destination),
		attribute.String("status", status),
	)

	m.count.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
