package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "mcp-fofa"

// Span attribute keys shared by the pipeline stages
const (
	AttrInvocationID = "fofa.invocation.id"
	AttrQuery        = "fofa.query"
	AttrResultCount  = "fofa.result.count"
	AttrProvider     = "llm.provider"
)

var (
	globalMutex          sync.RWMutex
	globalTracer         trace.Tracer
	globalTracerProvider *sdktrace.TracerProvider
	tracingEnabled       bool
)

// otelErrorHandler routes OTEL SDK errors to logrus so nothing reaches stderr in stdio mode
type otelErrorHandler struct {
	logger *logrus.Logger
}

func (h *otelErrorHandler) Handle(err error) {
	if err == nil {
		return
	}
	h.logger.WithError(err).Debug("OTEL: SDK error occurred")
}

// InitTracer initialises the OpenTelemetry tracer from the standard OTEL_* environment
// variables. Without OTEL_EXPORTER_OTLP_ENDPOINT a noop tracer is installed.
// The returned function flushes and shuts down the provider.
func InitTracer(logger *logrus.Logger, version string) (func() error, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	noopShutdown := func() error { return nil }

	if strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true") {
		logger.Debug("OTEL: Explicitly disabled via OTEL_SDK_DISABLED")
		globalTracer = noop.NewTracerProvider().Tracer(tracerName)
		tracingEnabled = false
		return noopShutdown, nil
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		logger.Debug("OTEL: Not configured (OTEL_EXPORTER_OTLP_ENDPOINT not set), using noop tracer")
		globalTracer = noop.NewTracerProvider().Tracer(tracerName)
		tracingEnabled = false
		return noopShutdown, nil
	}

	logger.WithField("endpoint", endpoint).Info("OTEL: Initialising tracer")
	otel.SetErrorHandler(&otelErrorHandler{logger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		globalTracer = noop.NewTracerProvider().Tracer(tracerName)
		tracingEnabled = false
		return noopShutdown, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(getServiceName()),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		logger.WithError(err).Warn("OTEL: Failed to create resource, using default")
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalTracer = tp.Tracer(tracerName)
	globalTracerProvider = tp
	tracingEnabled = true

	logger.Info("OTEL: Tracer initialised successfully")

	return func() error {
		globalMutex.Lock()
		defer globalMutex.Unlock()

		if globalTracerProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := globalTracerProvider.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}

// GetTracer returns the global tracer, or a noop tracer if InitTracer was never called
func GetTracer() trace.Tracer {
	globalMutex.RLock()
	defer globalMutex.RUnlock()

	if globalTracer == nil {
		return noop.NewTracerProvider().Tracer(tracerName)
	}
	return globalTracer
}

// IsEnabled returns true if tracing is enabled
func IsEnabled() bool {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return tracingEnabled
}

// StartSpan starts an internal span for one pipeline stage.
// The caller must finish it with EndSpan.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !IsEnabled() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return GetTracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records the outcome of a stage and ends its span
func EndSpan(span trace.Span, err error) {
	if span == nil || !span.IsRecording() {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func getServiceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return tracerName
}
