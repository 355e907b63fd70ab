// Package bunny provides a config-driven OpenTelemetry tracing layer for Go
// services that talk to AMQP 0-9-1 brokers.
//
// # Overview
//
// The bunny package wraps official OTel APIs, providing:
//   - Config-driven sampling (OTel standard: always_on, always_off, traceidratio, parentbased_*)
//   - Pluggable span naming via [SpanNamer] interface
//   - W3C TraceContext and Baggage propagation (OTEL_PROPAGATORS)
//   - Context-aware span helpers for tracing operations
//
// The bunny/amqp sub-package instruments AMQP channels: it traces publishes,
// deliveries, and acknowledgements, and carries trace context through message
// headers. See that package for details.
//
// # Quick Start
//
// Initialize the tracer provider and global tracer:
//
//	cfg := &bunny.TelemetryConfig{...}
//	tp, err := bunny.NewTracerProvider(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tp.Shutdown(ctx)
//	bunny.InitTracing(tp.Tracer("my-service"), bunny.DefaultNamer{})
//
// Use span helpers in your code:
//
//	func ProcessBatch(ctx context.Context, batch []Item) error {
//	    ctx, span := bunny.Start(ctx, "ProcessBatch")
//	    defer span.End()
//
//	    bunny.SetAttributes(ctx, attribute.Int("batch.size", len(batch)))
//
//	    if err := process(ctx, batch); err != nil {
//	        bunny.RecordError(ctx, err)
//	        return err
//	    }
//
//	    bunny.SetSuccess(ctx)
//	    return nil
//	}
//
// # Configuration
//
// Configure via YAML or environment variables (OTel standard):
//
//	bunny:
//	  enabled: true
//	  serviceName: "my-service"  # OTEL_SERVICE_NAME
//	  traces:
//	    exporter: "otlp"  # OTEL_TRACES_EXPORTER
//	    sampling:
//	      sampler: "parentbased_traceidratio"  # OTEL_TRACES_SAMPLER
//	      samplerArg: 0.1  # OTEL_TRACES_SAMPLER_ARG
//	  otlp:
//	    endpoint: "otel-collector:4317"  # OTEL_EXPORTER_OTLP_ENDPOINT
//	  propagation:
//	    propagators: "tracecontext,baggage"  # OTEL_PROPAGATORS
//
// # Span Naming
//
// The [SpanNamer] interface controls how operation names become span names.
// [DefaultNamer] returns operation unchanged, adhering to OTel semantic conventions.
// Use helpers like [NameMessaging], [NameHTTP], etc. to construct standard names.
//
// # Baggage
//
// Use baggage helpers to propagate metadata across services:
//
//	ctx = bunny.MustSetBaggage(ctx, "tenant.id", tenantID)
//	// ... later in downstream service
//	tenantID := bunny.GetBaggage(ctx, "tenant.id")
package bunny
