// Package otelx wires the OTLP trace exporter when OTEL_ENABLED is set.
package otelx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/bakkerme/salewatch/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// ShutdownFunc flushes pending spans. It is a no-op when tracing is off.
type ShutdownFunc func(context.Context) error

// Init installs a global tracer provider. With tracing disabled the global
// no-op provider stays in place and spans cost nothing.
func Init(ctx context.Context, logger *slog.Logger, cfg config.OTelEnvConfig) (ShutdownFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "salewatch"
	}

	exp, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("otel_initialized",
		"service_name", serviceName,
		"otlp_endpoint", Endpoint(cfg),
		"otlp_protocol", Protocol(cfg),
		"sample_ratio", cfg.SampleRatio,
	)
	return tp.Shutdown, nil
}

func newTraceExporter(ctx context.Context, cfg config.OTelEnvConfig) (*otlptrace.Exporter, error) {
	endpoint := Endpoint(cfg)
	switch protocol := Protocol(cfg); protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{}
		if strings.Contains(endpoint, "://") {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	case ProtocolGRPC:
		host, err := GRPCHost(endpoint)
		if err != nil {
			return nil, err
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(host)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTEL_EXPORTER_OTLP_PROTOCOL %q (expected grpc or http/protobuf)", protocol)
	}
}

// GRPCHost strips a scheme from endpoint; the grpc exporter wants host:port.
func GRPCHost(endpoint string) (string, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse OTEL_EXPORTER_OTLP_ENDPOINT: %w", err)
	}
	return u.Host, nil
}

func Endpoint(cfg config.OTelEnvConfig) string {
	if v := strings.TrimSpace(cfg.Endpoint); v != "" {
		return v
	}
	if Protocol(cfg) == ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

func Protocol(cfg config.OTelEnvConfig) string {
	switch v := strings.ToLower(strings.TrimSpace(cfg.Protocol)); v {
	case "":
		return ProtocolGRPC
	case "http":
		return ProtocolHTTP
	default:
		return v
	}
}
