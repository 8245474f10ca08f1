// Package tracing wires the OTLP tracer provider when tracing is enabled.
package tracing

import (
	"context"
	"time"

	"github.com/pagehub/billing/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Register(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) {
	if !cfg.TracingEnabled {
		return
	}

	var provider *sdktrace.TracerProvider

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			exporter, err := otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
			)
			if err != nil {
				return err
			}

			res, err := resource.New(ctx,
				resource.WithAttributes(
					semconv.ServiceName(cfg.AppName),
					semconv.ServiceVersion(cfg.AppVersion),
				),
			)
			if err != nil {
				return err
			}

			provider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter),
				sdktrace.WithResource(res),
			)
			otel.SetTracerProvider(provider)
			log.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if provider == nil {
				return nil
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("observability.tracing",
	fx.Invoke(Register),
)
