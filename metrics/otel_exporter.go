package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	// OTel meters and instruments
	meter               metric.Meter
	dueCountGauge       metric.Int64ObservableGauge
	statusCountGauge    metric.Int64ObservableGauge
	throughputGauge     metric.Int64ObservableGauge
	endpointHealthGauge metric.Int64ObservableGauge
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"webhook-outbox",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Due-queue gauge
	oe.dueCountGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.deliveries.due",
		metric.WithDescription("Number of deliveries currently eligible for a sweep"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeDueCount),
	)
	if err != nil {
		return fmt.Errorf("creating due count gauge: %w", err)
	}

	// Status count gauge (per status)
	oe.statusCountGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.deliveries.status",
		metric.WithDescription("Number of deliveries by status"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeStatusCounts),
	)
	if err != nil {
		return fmt.Errorf("creating status count gauge: %w", err)
	}

	// Throughput gauge (completed deliveries over time windows)
	oe.throughputGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.deliveries.throughput",
		metric.WithDescription("Number of deliveries completed over time window"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeThroughput),
	)
	if err != nil {
		return fmt.Errorf("creating throughput gauge: %w", err)
	}

	// Endpoint health gauge (active/disabled)
	oe.endpointHealthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.endpoints",
		metric.WithDescription("Number of endpoints by activity state"),
		metric.WithUnit("{endpoints}"),
		metric.WithInt64Callback(oe.observeEndpointHealth),
	)
	if err != nil {
		return fmt.Errorf("creating endpoint health gauge: %w", err)
	}

	return nil
}

// observeDueCount is a callback that reports the due-queue length
func (oe *OTelExporter) observeDueCount(ctx context.Context, observer metric.Int64Observer) error {
	dueCount, err := oe.collector.GetDueCount(ctx)
	if err != nil {
		return err
	}

	observer.Observe(dueCount)

	return nil
}

// observeStatusCounts is a callback that reports delivery counts by status
func (oe *OTelExporter) observeStatusCounts(ctx context.Context, observer metric.Int64Observer) error {
	statusCounts, err := oe.collector.GetStatusCounts(ctx)
	if err != nil {
		return err
	}

	for status, count := range statusCounts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("delivery.status", status),
		))
	}

	return nil
}

// observeThroughput is a callback that reports throughput metrics
func (oe *OTelExporter) observeThroughput(ctx context.Context, observer metric.Int64Observer) error {
	throughput, err := oe.collector.GetThroughput(ctx)
	if err != nil {
		return err
	}

	observer.Observe(throughput.LastMinute, metric.WithAttributes(
		attribute.String("time.window", "1m"),
	))
	observer.Observe(throughput.LastFiveMinutes, metric.WithAttributes(
		attribute.String("time.window", "5m"),
	))
	observer.Observe(throughput.LastFifteenMinutes, metric.WithAttributes(
		attribute.String("time.window", "15m"),
	))

	return nil
}

// observeEndpointHealth is a callback that reports endpoint activity state
func (oe *OTelExporter) observeEndpointHealth(ctx context.Context, observer metric.Int64Observer) error {
	health, err := oe.collector.GetEndpointHealth(ctx)
	if err != nil {
		return err
	}

	observer.Observe(health.Active, metric.WithAttributes(
		attribute.String("endpoint.state", "active"),
	))
	observer.Observe(health.Disabled, metric.WithAttributes(
		attribute.String("endpoint.state", "disabled"),
	))

	return nil
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
