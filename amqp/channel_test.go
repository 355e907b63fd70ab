package amqp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

func TestWrapChannel_NilChannel(t *testing.T) {
	assert.Nil(t, WrapChannel(nil))
}

func TestWrapChannel_Idempotent(t *testing.T) {
	setupTest(t)

	traced := WrapChannel(&mockChannel{})
	rewrapped := WrapChannel(traced)

	assert.Same(t, traced, rewrapped)
}

func TestWrapChannel_IdempotentSpanCount(t *testing.T) {
	exporter, _ := setupTest(t)

	traced := WrapChannel(WrapChannel(&mockChannel{}))

	err := traced.PublishWithContext(context.Background(), "", "orders", false, false, amqp091.Publishing{})
	require.NoError(t, err)

	// Double registration must not double spans.
	assert.Len(t, exporter.GetSpans(), 1)
}

func TestPublish_CreatesProducerSpan(t *testing.T) {
	exporter, _ := setupTest(t)

	var captured amqp091.Publishing
	traced := WrapChannel(&mockChannel{
		publishFunc: func(_ context.Context, _, _ string, _, _ bool, msg amqp091.Publishing) error {
			captured = msg
			return nil
		},
	})

	err := traced.PublishWithContext(context.Background(), "", "orders", false, false, amqp091.Publishing{
		Body: []byte("hello"),
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "orders publish", span.Name)
	assert.Equal(t, oteltrace.SpanKindProducer, span.SpanKind)

	attrMap := spanAttrMap(span)
	assert.Equal(t, "amqp", attrMap["messaging.system"])
	assert.Equal(t, "publish", attrMap["messaging.operation.type"])
	assert.Equal(t, "orders", attrMap["messaging.destination.name"])
	assert.Equal(t, "tcp", attrMap["network.transport"])

	// Headers passed to the real publish contain the injected trace context.
	require.NotNil(t, captured.Headers)
	assert.NotEmpty(t, captured.Headers["traceparent"])
}

func TestPublish_DoesNotMutateCallerHeaders(t *testing.T) {
	_, _ = setupTest(t)

	var captured amqp091.Publishing
	traced := WrapChannel(&mockChannel{
		publishFunc: func(_ context.Context, _, _ string, _, _ bool, msg amqp091.Publishing) error {
			captured = msg
			return nil
		},
	})

	original := amqp091.Table{"app-key": "app-value"}
	err := traced.PublishWithContext(context.Background(), "events", "orders", false, false, amqp091.Publishing{
		Headers: original,
		Body:    []byte("hello"),
	})
	require.NoError(t, err)

	// The interceptor substituted an augmented copy.
	assert.NotContains(t, original, "traceparent")
	assert.Equal(t, "app-value", captured.Headers["app-key"])
	assert.NotEmpty(t, captured.Headers["traceparent"])
}

func TestPublish_ParentFromAmbientContext(t *testing.T) {
	exporter, tp := setupTest(t)

	traced := WrapChannel(&mockChannel{})

	ctx, parent := tp.Tracer("test").Start(context.Background(), "caller-operation")
	err := traced.PublishWithContext(ctx, "", "orders", false, false, amqp091.Publishing{})
	require.NoError(t, err)
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	// The publish span is a child of the caller's span.
	assert.Equal(t, "orders publish", spans[0].Name)
	assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext.TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent.SpanID())
}

func TestPublish_RecordsError(t *testing.T) {
	exporter, _ := setupTest(t)

	expectedErr := errors.New("channel closed")
	traced := WrapChannel(&mockChannel{
		publishFunc: func(_ context.Context, _, _ string, _, _ bool, _ amqp091.Publishing) error {
			return expectedErr
		},
	})

	err := traced.PublishWithContext(context.Background(), "", "orders", false, false, amqp091.Publishing{})
	require.Error(t, err)
	assert.Equal(t, expectedErr, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Equal(t, "channel closed", span.Status.Description)
	assert.Equal(t, "*errors.errorString", spanAttrMap(span)["error.type"])
}

func TestPublish_CallerAttributes(t *testing.T) {
	exporter, _ := setupTest(t)

	traced := WrapChannel(&mockChannel{})
	err := traced.PublishWithContext(context.Background(), "", "orders", false, false, amqp091.Publishing{})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrMap := spanAttrMap(spans[0])
	assert.Contains(t, attrMap["code.filepath"], "channel_test.go")
	assert.Equal(t, "TestPublish_CallerAttributes", attrMap["code.function"])
}

func TestChannelAck_CreatesClientSpan(t *testing.T) {
	exporter, _ := setupTest(t)

	var ackedTag uint64
	traced := WrapChannel(&mockChannel{
		ackFunc: func(tag uint64, _ bool) error {
			ackedTag = tag
			return nil
		},
	})

	require.NoError(t, traced.Ack(42, false))
	assert.Equal(t, uint64(42), ackedTag)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "ack", spans[0].Name)
	assert.Equal(t, oteltrace.SpanKindClient, spans[0].SpanKind)
	assert.Equal(t, int64(42), spanAttrMap(spans[0])["messaging.rabbitmq.message.delivery_tag"])
	// Tag-only settlement carries no context, so the span is a root.
	assert.False(t, spans[0].Parent.IsValid())
}

func TestChannelNackReject_RecordError(t *testing.T) {
	exporter, _ := setupTest(t)

	expectedErr := errors.New("delivery not found")
	traced := WrapChannel(&mockChannel{
		nackFunc:   func(_ uint64, _, _ bool) error { return expectedErr },
		rejectFunc: func(_ uint64, _ bool) error { return expectedErr },
	})

	assert.Equal(t, expectedErr, traced.Nack(1, false, true))
	assert.Equal(t, expectedErr, traced.Reject(2, false))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "nack", spans[0].Name)
	assert.Equal(t, "reject", spans[1].Name)
	for _, span := range spans {
		assert.Equal(t, codes.Error, span.Status.Code)
	}
}

func TestWrapChannel_Disabled(t *testing.T) {
	exporter, _ := setupTest(t)
	t.Setenv(disabledEnvVar, "bunny")

	var captured amqp091.Publishing
	traced := WrapChannel(&mockChannel{
		publishFunc: func(_ context.Context, _, _ string, _, _ bool, msg amqp091.Publishing) error {
			captured = msg
			return nil
		},
	})

	err := traced.PublishWithContext(context.Background(), "", "orders", false, false, amqp091.Publishing{})
	require.NoError(t, err)
	require.NoError(t, traced.Ack(1, false))

	// No spans, no header mutation.
	assert.Empty(t, exporter.GetSpans())
	assert.Nil(t, captured.Headers)
}

func TestConsumeTraced_DisabledSettlement(t *testing.T) {
	exporter, _ := setupTest(t)
	t.Setenv(disabledEnvVar, "bunny")

	ack := &mockAcknowledger{}
	deliveries := make(chan amqp091.Delivery, 1)
	deliveries <- amqp091.Delivery{Acknowledger: ack, RoutingKey: "orders", DeliveryTag: 8}
	close(deliveries)

	traced := WrapChannel(&mockChannel{
		consumeFunc: func(_, _ string, _, _, _, _ bool, _ amqp091.Table) (<-chan amqp091.Delivery, error) {
			return deliveries, nil
		},
	})

	msgs, err := traced.ConsumeTraced("orders", "", false, false, false, false, nil)
	require.NoError(t, err)

	d, ok := <-msgs
	require.True(t, ok)

	// Process and settlement both pass through without spans.
	_, end := d.StartProcessSpan()
	require.NoError(t, d.Ack(false))
	end(nil)

	assert.Equal(t, []uint64{8}, ack.ackTags)
	assert.Empty(t, exporter.GetSpans())
}

func TestConsumeTraced_ExtractsContext(t *testing.T) {
	_, tp := setupTest(t)

	// Producer side: inject into headers.
	ctx, producer := tp.Tracer("test").Start(context.Background(), "producer")
	headers := make(amqp091.Table)
	InjectTable(ctx, headers)
	producer.End()

	deliveries := make(chan amqp091.Delivery, 1)
	deliveries <- amqp091.Delivery{RoutingKey: "orders", Headers: headers, DeliveryTag: 1}
	close(deliveries)

	traced := WrapChannel(&mockChannel{
		consumeFunc: func(_, _ string, _, _, _, _ bool, _ amqp091.Table) (<-chan amqp091.Delivery, error) {
			return deliveries, nil
		},
	})

	msgs, err := traced.ConsumeTraced("orders", "", false, false, false, false, nil)
	require.NoError(t, err)

	d, ok := <-msgs
	require.True(t, ok)

	spanCtx := oteltrace.SpanContextFromContext(d.Context())
	require.True(t, spanCtx.IsValid())
	assert.Equal(t, producer.SpanContext().TraceID(), spanCtx.TraceID())

	_, ok = <-msgs
	assert.False(t, ok, "channel closes when the source closes")
}

func TestConsumeTraced_RegistrationError(t *testing.T) {
	setupTest(t)

	regErr := errors.New("queue missing")
	traced := WrapChannel(&mockChannel{
		consumeFunc: func(_, _ string, _, _, _, _ bool, _ amqp091.Table) (<-chan amqp091.Delivery, error) {
			return nil, regErr
		},
	})

	msgs, err := traced.ConsumeTraced("orders", "", false, false, false, false, nil)
	assert.Nil(t, msgs)
	assert.Equal(t, regErr, err)
}
