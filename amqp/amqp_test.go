package amqp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// setupTest installs an in-memory exporter as the global tracing pipeline.
func setupTest(t *testing.T) (*tracetest.InMemoryExporter, *trace.TracerProvider) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return exporter, tp
}

// spanAttrMap flattens a recorded span's attributes for assertions.
func spanAttrMap(span tracetest.SpanStub) map[string]any {
	attrMap := make(map[string]any, len(span.Attributes))
	for _, attr := range span.Attributes {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	return attrMap
}

// mockChannel implements Channel with overridable functions.
type mockChannel struct {
	publishFunc func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	consumeFunc func(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	ackFunc     func(tag uint64, multiple bool) error
	nackFunc    func(tag uint64, multiple, requeue bool) error
	rejectFunc  func(tag uint64, requeue bool) error
}

func (m *mockChannel) PublishWithContext(
	ctx context.Context,
	exchange, key string,
	mandatory, immediate bool,
	msg amqp091.Publishing,
) error {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, exchange, key, mandatory, immediate, msg)
	}

	return nil
}

func (m *mockChannel) Consume(
	queue, consumer string,
	autoAck, exclusive, noLocal, noWait bool,
	args amqp091.Table,
) (<-chan amqp091.Delivery, error) {
	if m.consumeFunc != nil {
		return m.consumeFunc(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	}

	ch := make(chan amqp091.Delivery)
	close(ch)

	return ch, nil
}

func (m *mockChannel) Ack(tag uint64, multiple bool) error {
	if m.ackFunc != nil {
		return m.ackFunc(tag, multiple)
	}

	return nil
}

func (m *mockChannel) Nack(tag uint64, multiple, requeue bool) error {
	if m.nackFunc != nil {
		return m.nackFunc(tag, multiple, requeue)
	}

	return nil
}

func (m *mockChannel) Reject(tag uint64, requeue bool) error {
	if m.rejectFunc != nil {
		return m.rejectFunc(tag, requeue)
	}

	return nil
}

// mockAcknowledger records settlement calls made through a Delivery.
type mockAcknowledger struct {
	ackTags    []uint64
	nackTags   []uint64
	rejectTags []uint64
	err        error
}

func (m *mockAcknowledger) Ack(tag uint64, _ bool) error {
	m.ackTags = append(m.ackTags, tag)
	return m.err
}

func (m *mockAcknowledger) Nack(tag uint64, _, _ bool) error {
	m.nackTags = append(m.nackTags, tag)
	return m.err
}

func (m *mockAcknowledger) Reject(tag uint64, _ bool) error {
	m.rejectTags = append(m.rejectTags, tag)
	return m.err
}

func TestTableCarrier_GetSetKeys(t *testing.T) {
	table := make(amqp091.Table)
	carrier := tableCarrier(table)

	carrier.Set("traceparent", "00-abc-def-01")
	carrier.Set("tracestate", "key=value")

	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))
	assert.Equal(t, "key=value", carrier.Get("tracestate"))
	assert.Equal(t, "", carrier.Get("nonexistent"))

	keys := carrier.Keys()
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "traceparent")
	assert.Contains(t, keys, "tracestate")
}

func TestTableCarrier_NonStringValue(t *testing.T) {
	table := amqp091.Table{
		"x-retry-count": int32(3),
		"traceparent":   "00-abc-def-01",
	}
	carrier := tableCarrier(table)

	// Non-string header values are treated as absent, never an error.
	assert.Equal(t, "", carrier.Get("x-retry-count"))
	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))
}

func TestInjectExtract_RoundTrip(t *testing.T) {
	_, tp := setupTest(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "producer-side")
	defer span.End()

	headers := amqp091.Table{"content-hint": "json"}
	InjectTable(ctx, headers)

	// Unrelated keys survive injection.
	assert.Equal(t, "json", headers["content-hint"])
	assert.NotEmpty(t, headers["traceparent"])

	extracted := ExtractTable(context.Background(), headers)
	spanCtx := oteltrace.SpanContextFromContext(extracted)
	require.True(t, spanCtx.IsValid())
	assert.Equal(t, span.SpanContext().TraceID(), spanCtx.TraceID())
}

func TestExtractTable_NoTraceHeaders(t *testing.T) {
	setupTest(t)

	ctx := context.Background()
	result := ExtractTable(ctx, amqp091.Table{"unrelated": "value"})

	// No injected context means no parent: a root context comes back.
	spanCtx := oteltrace.SpanContextFromContext(result)
	assert.False(t, spanCtx.IsValid())
}

func TestExtractTable_NilHeaders(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ExtractTable(ctx, nil))
}

func TestInjectTable_NilHeaders(t *testing.T) {
	// Must not panic.
	InjectTable(context.Background(), nil)
}

func TestCloneTable_Independent(t *testing.T) {
	original := amqp091.Table{"a": "1"}

	clone := cloneTable(original)
	clone["b"] = "2"

	assert.Equal(t, "1", original["a"])
	assert.NotContains(t, original, "b")
}

func TestPublishAttributes(t *testing.T) {
	attrs := publishAttributes("events", "orders", 1024)

	attrMap := make(map[string]any)
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Equal(t, "amqp", attrMap["messaging.system"])
	assert.Equal(t, "publish", attrMap["messaging.operation.type"])
	assert.Equal(t, "orders", attrMap["messaging.destination.name"])
	assert.Equal(t, "queue", attrMap["messaging.destination.kind"])
	assert.Equal(t, "orders", attrMap["messaging.rabbitmq.routing_key"])
	assert.Equal(t, "orders", attrMap["messaging.rabbitmq.destination.routing_key"])
	assert.Equal(t, "events", attrMap["messaging.rabbitmq.exchange"])
	assert.Equal(t, "amqp", attrMap["network.protocol.name"])
	assert.Equal(t, "tcp", attrMap["network.transport"])
	assert.Equal(t, int64(1024), attrMap["messaging.message.body.size"])
}

func TestReceiveAttributes(t *testing.T) {
	d := amqp091.Delivery{
		RoutingKey:  "orders",
		Exchange:    "events",
		ConsumerTag: "worker-1",
		DeliveryTag: 7,
		Body:        []byte("payload"),
	}

	attrs := receiveAttributes("orders-queue", d)

	attrMap := make(map[string]any)
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Equal(t, "amqp", attrMap["messaging.system"])
	assert.Equal(t, "receive", attrMap["messaging.operation.type"])
	assert.Equal(t, "orders-queue", attrMap["messaging.destination.name"])
	assert.Equal(t, "orders", attrMap["messaging.rabbitmq.routing_key"])
	assert.Equal(t, int64(7), attrMap["messaging.rabbitmq.message.delivery_tag"])
	assert.Equal(t, "worker-1", attrMap["messaging.consumer.id"])
}

func TestSettleAttributes_MissingOptionalFields(t *testing.T) {
	// Empty routing key and consumer tag are absent attributes, not errors.
	attrs := settleAttributes(opTypeAck, amqp091.Delivery{DeliveryTag: 3})

	attrMap := make(map[string]any)
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Equal(t, "ack", attrMap["messaging.operation.type"])
	assert.Equal(t, int64(3), attrMap["messaging.rabbitmq.message.delivery_tag"])
	assert.NotContains(t, attrMap, "messaging.destination.name")
	assert.NotContains(t, attrMap, "messaging.consumer.id")
}

func TestCallerAttributes(t *testing.T) {
	attrs := callerAttributes(0)
	require.NotEmpty(t, attrs)

	attrMap := make(map[string]any)
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Contains(t, attrMap["code.filepath"], "amqp_test.go")
	assert.Equal(t, "TestCallerAttributes", attrMap["code.function"])
	namespace, _ := attrMap["code.namespace"].(string)
	assert.True(t, strings.HasSuffix(namespace, "/amqp"))
	assert.Positive(t, attrMap["code.lineno"])
}

func TestInstrumentationDisabled(t *testing.T) {
	assert.False(t, instrumentationDisabled())

	t.Setenv(disabledEnvVar, "kafka, Bunny ,redis")
	assert.True(t, instrumentationDisabled())

	t.Setenv(disabledEnvVar, "kafka,redis")
	assert.False(t, instrumentationDisabled())

	t.Setenv(disabledEnvVar, "bunny/amqp")
	assert.True(t, instrumentationDisabled())
}
