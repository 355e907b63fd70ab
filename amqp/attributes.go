package amqp

import (
	"go.opentelemetry.io/otel/attribute"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Messaging system identifier for the AMQP 0-9-1 protocol family.
const messagingSystem = "amqp"

// Attribute keys following OTel messaging semantic conventions.
// The routing key is recorded under both the legacy and the current key so
// older consumers of the tracing schema keep working.
const (
	attrMessagingSystem          = "messaging.system"
	attrMessagingOperationType   = "messaging.operation.type"
	attrMessagingDestinationName = "messaging.destination.name"
	attrMessagingDestinationKind = "messaging.destination.kind"
	attrMessagingConsumerID      = "messaging.consumer.id"
	attrMessagingBodySize        = "messaging.message.body.size"
	attrRoutingKeyLegacy         = "messaging.rabbitmq.routing_key"
	attrRoutingKey               = "messaging.rabbitmq.destination.routing_key"
	attrDeliveryTag              = "messaging.rabbitmq.message.delivery_tag"
	attrExchange                 = "messaging.rabbitmq.exchange"
	attrNetworkProtocolName      = "network.protocol.name"
	attrNetworkTransport         = "network.transport"
	attrErrorType                = "error.type"
)

// Operation types carried in messaging.operation.type.
const (
	opTypePublish = "publish"
	opTypeReceive = "receive"
	opTypeAck     = "ack"
	opTypeNack    = "nack"
	opTypeReject  = "reject"
)

// Fixed wire-level constants for AMQP over TCP.
const (
	destinationKindQueue = "queue"
	networkProtocolAMQP  = "amqp"
	networkTransportTCP  = "tcp"
)

// baseAttributes returns the attributes shared by every operation span.
func baseAttributes(opType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(attrMessagingSystem, messagingSystem),
		attribute.String(attrMessagingOperationType, opType),
		attribute.String(attrMessagingDestinationKind, destinationKindQueue),
		attribute.String(attrNetworkProtocolName, networkProtocolAMQP),
		attribute.String(attrNetworkTransport, networkTransportTCP),
	}
}

// publishAttributes returns attributes for a publish operation span.
func publishAttributes(exchange, routingKey string, bodySize int) []attribute.KeyValue {
	attrs := baseAttributes(opTypePublish)

	if routingKey != "" {
		attrs = append(attrs,
			attribute.String(attrMessagingDestinationName, routingKey),
			attribute.String(attrRoutingKeyLegacy, routingKey),
			attribute.String(attrRoutingKey, routingKey),
		)
	}

	if exchange != "" {
		attrs = append(attrs, attribute.String(attrExchange, exchange))
	}

	if bodySize > 0 {
		attrs = append(attrs, attribute.Int(attrMessagingBodySize, bodySize))
	}

	return attrs
}

// receiveAttributes returns attributes for a per-message consumer span.
func receiveAttributes(queue string, d amqp091.Delivery) []attribute.KeyValue {
	attrs := baseAttributes(opTypeReceive)

	if queue != "" {
		attrs = append(attrs, attribute.String(attrMessagingDestinationName, queue))
	}

	if d.RoutingKey != "" {
		attrs = append(attrs,
			attribute.String(attrRoutingKeyLegacy, d.RoutingKey),
			attribute.String(attrRoutingKey, d.RoutingKey),
		)
	}

	if d.Exchange != "" {
		attrs = append(attrs, attribute.String(attrExchange, d.Exchange))
	}

	if d.ConsumerTag != "" {
		attrs = append(attrs, attribute.String(attrMessagingConsumerID, d.ConsumerTag))
	}

	attrs = append(attrs, attribute.Int64(attrDeliveryTag, int64(d.DeliveryTag)))

	if len(d.Body) > 0 {
		attrs = append(attrs, attribute.Int(attrMessagingBodySize, len(d.Body)))
	}

	return attrs
}

// settleAttributes returns attributes for an ack/nack/reject span on a delivery.
func settleAttributes(opType string, d amqp091.Delivery) []attribute.KeyValue {
	attrs := baseAttributes(opType)

	if d.RoutingKey != "" {
		attrs = append(attrs,
			attribute.String(attrMessagingDestinationName, d.RoutingKey),
			attribute.String(attrRoutingKeyLegacy, d.RoutingKey),
			attribute.String(attrRoutingKey, d.RoutingKey),
		)
	}

	if d.ConsumerTag != "" {
		attrs = append(attrs, attribute.String(attrMessagingConsumerID, d.ConsumerTag))
	}

	attrs = append(attrs, attribute.Int64(attrDeliveryTag, int64(d.DeliveryTag)))

	return attrs
}

// settleTagAttributes returns attributes for an ack/nack/reject span when only
// the delivery tag is known (channel-level settlement).
func settleTagAttributes(opType string, tag uint64) []attribute.KeyValue {
	attrs := baseAttributes(opType)
	attrs = append(attrs, attribute.Int64(attrDeliveryTag, int64(tag)))

	return attrs
}
