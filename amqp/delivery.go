package amqp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Delivery wraps an amqp091.Delivery with the trace context extracted from
// its headers. Ack, Nack and Reject are traced: each creates a client span
// named "<routing key> <operation>" nested under the delivery's current
// context, which is the consumer span when the delivery came through
// DeliveryHandlerWithTracing.
type Delivery struct {
	amqp091.Delivery

	ctx      context.Context
	tracer   trace.Tracer
	metrics  *operationMetrics
	opts     options
	disabled bool
}

// NewDelivery wraps a raw delivery by extracting trace context from its
// headers using the global propagator.
//
// Use this when deliveries come from your own consumption loop and you want
// the propagated trace context without adopting TracedChannel:
//
//	for msg := range deliveries {
//	    d := amqp.NewDelivery(msg, amqp.WithQueue("orders"))
//	    ctx, end := d.StartProcessSpan()
//	    err := process(ctx, d.Body)
//	    end(err)
//	    d.Ack(false)
//	}
func NewDelivery(d amqp091.Delivery, opts ...Option) *Delivery {
	return NewDeliveryWithPropagator(d, nil, opts...)
}

// NewDeliveryWithPropagator wraps a raw delivery using the provided
// propagator. If prop is nil, the global propagator is used.
func NewDeliveryWithPropagator(d amqp091.Delivery, prop propagation.TextMapPropagator, opts ...Option) *Delivery {
	o := applyOptions(opts)
	if prop != nil {
		o.prop = prop
	}

	if instrumentationDisabled() {
		return &Delivery{Delivery: d, ctx: context.Background(), opts: o, disabled: true}
	}

	ctx := context.Background()
	if d.Headers != nil {
		ctx = getPropagator(o).Extract(ctx, tableCarrier(d.Headers))
	}

	return &Delivery{
		Delivery: d,
		ctx:      ctx,
		tracer:   getTracer(nil, o),
		metrics:  newOperationMetrics(o),
		opts:     o,
	}
}

// Context returns the context carrying the delivery's trace.
// Before StartProcessSpan it holds the extracted remote context (or a root
// context when the message carried no trace headers); afterwards it holds
// the process span, so downstream calls and settlement spans nest under it.
func (d *Delivery) Context() context.Context {
	if d.ctx == nil {
		return context.Background()
	}

	return d.ctx
}

// StartProcessSpan creates a consumer span for this message as a child of
// the extracted remote context and returns the span context together with an
// end function. The end function records a non-nil error on the span and
// ends it; call it exactly once when processing completes.
//
// The span is named "<queue> consumer"; the queue comes from the consuming
// channel or the WithQueue option and falls back to the routing key.
func (d *Delivery) StartProcessSpan() (context.Context, func(error)) {
	if d.disabled {
		return d.Context(), func(error) {}
	}

	queue := d.opts.queue
	if queue == "" {
		queue = d.RoutingKey
	}

	tracer := d.tracer
	if tracer == nil {
		tracer = getTracer(nil, d.opts)
	}

	ctx, span := tracer.Start(d.Context(), queue+" consumer",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(receiveAttributes(queue, d.Delivery)...),
	)

	// Later settlement spans nest under the process span.
	d.ctx = ctx

	endFunc := func(err error) {
		if err != nil {
			recordSpanError(span, err)
		}

		span.End()
	}

	return ctx, endFunc
}

// Ack acknowledges the delivery with tracing and delegates to the broker.
func (d *Delivery) Ack(multiple bool) error {
	return d.settle(opTypeAck, func() error { return d.Delivery.Ack(multiple) })
}

// Nack negatively acknowledges the delivery with tracing.
func (d *Delivery) Nack(multiple, requeue bool) error {
	return d.settle(opTypeNack, func() error { return d.Delivery.Nack(multiple, requeue) })
}

// Reject rejects the delivery with tracing.
func (d *Delivery) Reject(requeue bool) error {
	return d.settle(opTypeReject, func() error { return d.Delivery.Reject(requeue) })
}

// settle runs one ack/nack/reject with a client span around it.
// A broker error is recorded on the span and returned unchanged.
func (d *Delivery) settle(opType string, fn func() error) error {
	if d.disabled {
		return fn()
	}

	tracer := d.tracer
	if tracer == nil {
		// Delivery built outside a traced channel; resolve lazily.
		tracer = getTracer(nil, d.opts)
	}

	spanName := d.RoutingKey + " " + opType
	attrs := settleAttributes(opType, d.Delivery)
	attrs = append(attrs, callerAttributes(2)...)

	start := time.Now()
	ctx, span := tracer.Start(d.Context(), spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	err := fn()
	d.metrics.record(ctx, opType, d.RoutingKey, start, err)
	if err != nil {
		recordSpanError(span, err)
	}

	return err
}
