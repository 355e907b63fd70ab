package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Channel is the capability surface of an AMQP 0-9-1 channel that the
// tracing decorator wraps. *amqp091.Channel satisfies it.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
	Reject(tag uint64, requeue bool) error
}

// TracedChannel decorates a Channel with OpenTelemetry tracing.
// Publish creates producer spans and injects trace context into message
// headers; channel-level Ack/Nack/Reject create client spans. Consumer
// registration is not a traced operation; use ConsumeTraced or
// DeliveryHandlerWithTracing for per-message spans.
type TracedChannel struct {
	ch       Channel
	tracer   trace.Tracer
	prop     propagation.TextMapPropagator
	metrics  *operationMetrics
	opts     options
	disabled bool
}

// Compile-time check: the decorator must remain substitutable for the
// capability it wraps.
var _ Channel = (*TracedChannel)(nil)

// WrapChannel wraps a Channel with tracing using the global providers.
//
// Wrapping is idempotent: passing an already wrapped channel returns it
// unchanged, so repeated registration never produces duplicate spans.
// A nil channel is reported via otel.Handle and returns nil rather than
// panicking. When the instrumentation is disabled via
// OTEL_GO_DISABLED_INSTRUMENTATIONS, the wrapper passes every operation
// through untouched and injects no headers.
func WrapChannel(ch Channel, opts ...Option) *TracedChannel {
	return WrapChannelWithProviders(ch, nil, nil, opts...)
}

// WrapChannelWithProviders wraps a Channel with explicit providers.
// If tp is nil, the global TracerProvider is used.
// If prop is nil, the global TextMapPropagator is used (or opts.prop if set).
func WrapChannelWithProviders(
	ch Channel,
	tp trace.TracerProvider,
	prop propagation.TextMapPropagator,
	opts ...Option,
) *TracedChannel {
	if ch == nil {
		otel.Handle(errors.New("bunny/amqp: nil channel, instrumentation not installed"))
		return nil
	}

	// Idempotent registration: never double-wrap.
	if tc, ok := ch.(*TracedChannel); ok {
		return tc
	}

	o := applyOptions(opts)

	// Explicit prop parameter takes precedence over option
	if prop != nil {
		o.prop = prop
	}

	if instrumentationDisabled() {
		return &TracedChannel{ch: ch, opts: o, disabled: true}
	}

	return &TracedChannel{
		ch:      ch,
		tracer:  getTracer(tp, o),
		prop:    getPropagator(o),
		metrics: newOperationMetrics(o),
		opts:    o,
	}
}

// Channel returns the underlying channel for non-traced operations.
func (tc *TracedChannel) Channel() Channel {
	return tc.ch
}

// recordSpanError records err on the span, sets error status and carries the
// error's concrete type so failure class is queryable.
func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.String(attrErrorType, fmt.Sprintf("%T", err)))
	span.SetStatus(codes.Error, err.Error())
}

// PublishWithContext publishes a message with tracing.
// A producer span named "<routing key> publish" is created as a child of the
// caller's ambient context, and the trace context is injected into a copy of
// the outgoing headers; the caller's header map is never mutated. A publish
// failure is recorded on the span and returned unchanged.
func (tc *TracedChannel) PublishWithContext(
	ctx context.Context,
	exchange, key string,
	mandatory, immediate bool,
	msg amqp091.Publishing,
) error {
	if tc.disabled {
		return tc.ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
	}

	spanName := key + " " + opTypePublish
	attrs := publishAttributes(exchange, key, len(msg.Body))
	attrs = append(attrs, callerAttributes(1)...)

	start := time.Now()
	ctx, span := tc.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	// Substitute an augmented copy of the headers before the real publish.
	msg.Headers = cloneTable(msg.Headers)
	tc.prop.Inject(ctx, tableCarrier(msg.Headers))

	err := tc.ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
	tc.metrics.record(ctx, opTypePublish, key, start, err)
	if err != nil {
		recordSpanError(span, err)

		return err
	}

	return nil
}

// Consume registers a consumer on the underlying channel.
// Registration itself is not a traced operation; the returned deliveries are
// raw. Wrap the handler with DeliveryHandlerWithTracing, or use
// ConsumeTraced to receive deliveries with trace context pre-extracted.
func (tc *TracedChannel) Consume(
	queue, consumer string,
	autoAck, exclusive, noLocal, noWait bool,
	args amqp091.Table,
) (<-chan amqp091.Delivery, error) {
	return tc.ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}

// ConsumeTraced registers a consumer and returns a channel of deliveries
// with the remote trace context extracted from each message's headers.
// No span is created per message; call StartProcessSpan on a delivery, or
// prefer DeliveryHandlerWithTracing for automatic per-message spans.
func (tc *TracedChannel) ConsumeTraced(
	queue, consumer string,
	autoAck, exclusive, noLocal, noWait bool,
	args amqp091.Table,
) (<-chan *Delivery, error) {
	deliveries, err := tc.ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	if err != nil {
		return nil, err
	}

	o := tc.opts
	if o.queue == "" {
		o.queue = queue
	}

	out := make(chan *Delivery)

	go func() {
		defer close(out)

		for d := range deliveries {
			ctx := context.Background()
			if !tc.disabled && d.Headers != nil {
				ctx = tc.prop.Extract(ctx, tableCarrier(d.Headers))
			}

			out <- &Delivery{
				Delivery: d,
				ctx:      ctx,
				tracer:   tc.tracer,
				metrics:  tc.metrics,
				opts:     o,
				disabled: tc.disabled,
			}
		}
	}()

	return out, nil
}

// Ack acknowledges a delivery by tag with tracing.
// Only the delivery tag is known at channel level, and the amqp091 signature
// carries no context, so the span is a root: it never joins the caller's
// ambient trace. Settle through a Delivery to get routing-key attributes,
// span names and nesting under the consumer span.
func (tc *TracedChannel) Ack(tag uint64, multiple bool) error {
	return tc.settleTag(opTypeAck, tag, func() error { return tc.ch.Ack(tag, multiple) })
}

// Nack negatively acknowledges a delivery by tag with tracing.
// The span is a root; see Ack.
func (tc *TracedChannel) Nack(tag uint64, multiple bool, requeue bool) error {
	return tc.settleTag(opTypeNack, tag, func() error { return tc.ch.Nack(tag, multiple, requeue) })
}

// Reject rejects a delivery by tag with tracing.
// The span is a root; see Ack.
func (tc *TracedChannel) Reject(tag uint64, requeue bool) error {
	return tc.settleTag(opTypeReject, tag, func() error { return tc.ch.Reject(tag, requeue) })
}

func (tc *TracedChannel) settleTag(opType string, tag uint64, fn func() error) error {
	if tc.disabled {
		return fn()
	}

	attrs := settleTagAttributes(opType, tag)
	attrs = append(attrs, callerAttributes(2)...)

	start := time.Now()
	ctx, span := tc.tracer.Start(context.Background(), opType,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	err := fn()
	tc.metrics.record(ctx, opType, "", start, err)
	if err != nil {
		recordSpanError(span, err)
	}

	return err
}
