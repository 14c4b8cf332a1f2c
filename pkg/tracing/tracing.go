package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const TracerName = "business-api"

// Setup ставит глобальный TracerProvider. При выключенной трассировке остаётся noop-провайдер
// по умолчанию, а shutdown ничего не делает.
func Setup(ctx context.Context, enabled bool, grpcEndpoint string, logger *zap.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !enabled {
		return noop, nil
	}
	if grpcEndpoint == "" {
		logger.Warn("Трассировка включена, но OTEL_GRPC_ENDPOINT не задан, экспорт отключён")
		return noop, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(grpcEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return noop, fmt.Errorf("не удалось создать OTLP экспортер: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("Трассировка включена", zap.String("endpoint", grpcEndpoint))
	return tp.Shutdown, nil
}
