// Package amqp provides OpenTelemetry instrumentation for AMQP 0-9-1
// channels.
//
// The package decorates a narrow channel capability (publish, consume, ack,
// nack, reject) with spans following OTel messaging semantic conventions,
// and propagates trace context through message headers so a consumer span is
// linked to the producer span that published the message.
//
// # Publisher Usage
//
// Wrap a channel to add tracing to publish operations:
//
//	ch, _ := conn.Channel()
//	traced := amqp.WrapChannel(ch)
//
//	// Producer span "orders publish"; trace context injected into headers.
//	traced.PublishWithContext(ctx, "", "orders", false, false, amqp091.Publishing{
//	    Body: payload,
//	})
//
// The caller's header map is never mutated; the interceptor injects into a
// copy substituted before the underlying publish.
//
// # Consumer Usage
//
// Wrap your message handler so each received message gets a consumer span
// whose parent is the trace context carried in the message headers:
//
//	deliveries, _ := traced.Consume("orders", "", false, false, false, false, nil)
//	handle := amqp.DeliveryHandlerWithTracing("orders", func(d *amqp.Delivery) error {
//	    if err := processOrder(d.Context(), d.Body); err != nil {
//	        d.Nack(false, true) // traced client span "orders nack"
//	        return err
//	    }
//	    return d.Ack(false) // traced client span "orders ack"
//	})
//	for msg := range deliveries {
//	    handle(msg)
//	}
//
// Handler errors and panics are recorded on the span and propagate to the
// consumption loop unchanged; the instrumentation never decides requeue
// policy.
//
// # Channel-Style Consumption
//
// ConsumeTraced returns deliveries with the remote context pre-extracted
// when a callback style does not fit:
//
//	msgs, _ := traced.ConsumeTraced("orders", "", false, false, false, false, nil)
//	for d := range msgs {
//	    ctx, end := d.StartProcessSpan()
//	    end(processOrder(ctx, d.Body))
//	    d.Ack(false)
//	}
//
// # Disabling
//
// Set OTEL_GO_DISABLED_INSTRUMENTATIONS=bunny to turn the instrumentation
// into a pass-through: operations delegate untouched and no headers are
// injected. Wrapping is idempotent, so registering twice never produces
// duplicate spans.
//
// # Semantic Conventions
//
//   - Producer spans use kind PRODUCER with name "{routing key} publish"
//   - Consumer spans use kind CONSUMER with name "{queue} consumer"
//   - Ack/nack/reject spans use kind CLIENT with name "{routing key} {op}"
//   - messaging.system is "amqp"; network.transport is "tcp"
//
// For details, see https://opentelemetry.io/docs/specs/semconv/messaging/
package amqp
