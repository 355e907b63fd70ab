package amqp

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// DeliveryHandler processes one traced delivery. A returned error is
// recorded on the consumer span and handed back to the consumption loop
// unchanged; requeue policy stays with the caller.
type DeliveryHandler func(*Delivery) error

// DeliveryHandlerWithTracing wraps a handler so that every received message
// gets its own consumer span. The wrapper extracts the remote trace context
// from the message headers, starts a span named "<queue> consumer" with that
// context as parent, then calls your handler. Handler errors and panics are
// recorded on the span and propagate unchanged; the span ends exactly once
// on every path.
//
// Example:
//
//	deliveries, _ := ch.Consume("orders", "", false, false, false, false, nil)
//	handle := amqp.DeliveryHandlerWithTracing("orders", func(d *amqp.Delivery) error {
//	    if err := processOrder(d.Context(), d.Body); err != nil {
//	        d.Nack(false, true)
//	        return err
//	    }
//	    return d.Ack(false)
//	})
//	for msg := range deliveries {
//	    handle(msg)
//	}
func DeliveryHandlerWithTracing(queue string, handler DeliveryHandler, opts ...Option) func(amqp091.Delivery) error {
	return DeliveryHandlerWithTracingProviders(queue, handler, nil, nil, opts...)
}

// DeliveryHandlerWithTracingProviders wraps a handler with explicit providers.
// If tp is nil, the global TracerProvider is used.
// If prop is nil, the global TextMapPropagator is used.
//
// Panics if handler is nil.
func DeliveryHandlerWithTracingProviders(
	queue string,
	handler DeliveryHandler,
	tp trace.TracerProvider,
	prop propagation.TextMapPropagator,
	opts ...Option,
) func(amqp091.Delivery) error {
	if handler == nil {
		panic("bunny/amqp: handler must not be nil")
	}

	o := applyOptions(opts)
	if prop != nil {
		o.prop = prop
	}
	if o.queue == "" {
		o.queue = queue
	}

	if instrumentationDisabled() {
		return func(msg amqp091.Delivery) error {
			return handler(&Delivery{Delivery: msg, ctx: context.Background(), opts: o, disabled: true})
		}
	}

	tracer := getTracer(tp, o)
	propagator := getPropagator(o)
	metrics := newOperationMetrics(o)

	return func(msg amqp091.Delivery) error {
		// The span's parent is the context extracted from the message, not
		// whatever trace is ambient in this process; that is what links the
		// consumer back to the producer across the broker.
		parentCtx := context.Background()
		if msg.Headers != nil {
			parentCtx = propagator.Extract(parentCtx, tableCarrier(msg.Headers))
		}

		start := time.Now()
		spanCtx, span := tracer.Start(parentCtx, queue+" consumer",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(receiveAttributes(queue, msg)...),
		)

		d := &Delivery{
			Delivery: msg,
			ctx:      spanCtx,
			tracer:   tracer,
			metrics:  metrics,
			opts:     o,
		}

		var err error
		defer func() {
			if r := recover(); r != nil {
				panicErr := fmt.Errorf("panic: %v", r)
				metrics.record(spanCtx, opTypeReceive, queue, start, panicErr)
				recordSpanError(span, panicErr)
				span.End()
				panic(r) // Re-panic after recording
			}

			metrics.record(spanCtx, opTypeReceive, queue, start, err)
			if err != nil {
				recordSpanError(span, err)
			}
			span.End()
		}()

		err = handler(d)

		return err
	}
}
