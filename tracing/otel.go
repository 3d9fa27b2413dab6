package tracing

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ConfigureTraceProvider installs the global tracer provider. Spans are only
// exported when jaegerEndpoint is set.
func ConfigureTraceProvider(jaegerEndpoint string) (*tracesdk.TracerProvider, error) {
	opts := []tracesdk.TracerProviderOption{
		tracesdk.WithResource(
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName("raillink"),
			)),
	}

	if jaegerEndpoint != "" {
		exp, err := jaeger.New(
			jaeger.WithCollectorEndpoint(
				jaeger.WithEndpoint(jaegerEndpoint),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("could not create jaeger exporter: %w", err)
		}

		opts = append(opts, tracesdk.WithBatcher(exp))
	}

	tp := tracesdk.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)

	// without the propagator the trace is not carried through message metadata
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

type PublisherDecorator struct {
	message.Publisher
}

func (d PublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for i := range messages {
		otel.GetTextMapPropagator().Inject(messages[i].Context(), propagation.MapCarrier(messages[i].Metadata))
	}
	return d.Publisher.Publish(topic, messages...)
}
