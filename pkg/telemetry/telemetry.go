package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/denysvitali/rclone-api-go/pkg/config"
)

const (
	ServiceName    = "rclone-api"
	ServiceVersion = "1.0.0"
)

// Initialize sets up OpenTelemetry tracing and logging using autoexport.
// The returned function flushes and shuts down both providers.
func Initialize(cfg config.TelemetryConfig, logger *logrus.Logger) (func(), error) {
	// autoexport only reads the environment
	if cfg.Endpoint != "" && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		if err := os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Endpoint); err != nil {
			return nil, err
		}
	}

	// Create resource
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Create span exporter using autoexport
	spanExporter, err := autoexport.NewSpanExporter(context.Background())
	if err != nil {
		return nil, err
	}

	// Create trace provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)

	// Set global trace provider
	otel.SetTracerProvider(tp)

	// Create log exporter using autoexport; tracing still works without it
	var logProvider *sdklog.LoggerProvider
	logExporter, err := autoexport.NewLogExporter(context.Background())
	if err != nil {
		logger.Warnf("Failed to create log exporter: %v", err)
	} else {
		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		// Set global log provider
		global.SetLoggerProvider(logProvider)
	}

	// Set global propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Return cleanup function
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(ctx); err != nil {
			logger.Errorf("Error shutting down tracer provider: %v", err)
		}
		if logProvider != nil {
			if err := logProvider.Shutdown(ctx); err != nil {
				logger.Errorf("Error shutting down log provider: %v", err)
			}
		}
	}, nil
}

// ReportJSON records data as JSON on a child span, in the debug log and as an OTel log record
func ReportJSON(ctx context.Context, logger *logrus.Logger, operationName string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Errorf("Failed to marshal data to JSON: %v", err)
		return
	}

	// Add to span
	_, span := otel.Tracer(ServiceName).Start(ctx, operationName)
	span.SetAttributes(attribute.String("json.data", string(jsonData)))
	span.End()

	// Log with logrus
	logger.WithFields(logrus.Fields{
		"operation": operationName,
		"json_data": string(jsonData),
	}).Debug("JSON data reported")

	// Emit OTel log record
	var record otellog.Record
	now := time.Now()
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetSeverity(otellog.SeverityDebug)
	record.SetSeverityText("DEBUG")
	record.SetBody(otellog.StringValue(string(jsonData)))
	record.AddAttributes(otellog.String("operation", operationName))
	global.GetLoggerProvider().Logger(ServiceName).Emit(ctx, record)
}
