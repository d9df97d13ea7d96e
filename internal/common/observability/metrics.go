package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records enrichment job level metrics through OpenTelemetry,
// exported on the same /metrics endpoint as the prometheus collectors.
type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	recordCounter otelmetric.Int64Counter
}

// New returns a no-op Observability if the exporter cannot be created.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"enrichment_jobs.processed",
		otelmetric.WithDescription("Number of enrichment jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"enrichment_jobs.duration",
		otelmetric.WithDescription("Enrichment job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	recordCounter, _ := meter.Int64Counter(
		"enrichment_jobs.records",
		otelmetric.WithDescription("Records read by enrichment jobs"),
	)

	return &Observability{
		meterProvider: provider,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
		recordCounter: recordCounter,
	}, nil
}

// NewNoop is used by tests and when metrics are disabled.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) RecordRecords(ctx context.Context, total, enriched int) {
	if o == nil || o.recordCounter == nil {
		return
	}
	o.recordCounter.Add(ctx, int64(enriched), otelmetric.WithAttributes(attribute.Bool("enriched", true)))
	o.recordCounter.Add(ctx, int64(total-enriched), otelmetric.WithAttributes(attribute.Bool("enriched", false)))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
