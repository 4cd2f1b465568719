package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "library/internal/services"

type instrumentation struct {
	tracer     trace.Tracer
	operations metric.Int64Counter
}

func newInstrumentation() instrumentation {
	return newInstrumentationFrom(otel.GetTracerProvider(), otel.GetMeterProvider())
}

func newInstrumentationFrom(tp trace.TracerProvider, mp metric.MeterProvider) instrumentation {
	counter, err := mp.Meter(instrumentationName).Int64Counter(
		"library.operations",
		metric.WithDescription("Circulation and inventory operations by outcome"),
	)
	if err != nil {
		otel.Handle(err)
		counter = noop.Int64Counter{}
	}
	return instrumentation{
		tracer:     tp.Tracer(instrumentationName),
		operations: counter,
	}
}

func (in instrumentation) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// end records the outcome of op on span and the operations counter, then ends span.
func (in instrumentation) end(ctx context.Context, span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = Kind(err)
		span.RecordError(err)
		if outcome == "internal" {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	in.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
	span.End()
}
