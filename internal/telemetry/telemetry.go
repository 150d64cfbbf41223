// Package telemetry wires otel counters for the portal's ambient
// observability stack, grounded on the teacher's go.opentelemetry.io/otel
// dependency block. The portal is a single fixed-function device, not a
// fleet, so metrics are exported to stdout rather than an OTLP collector
// — useful for field diagnostics without requiring network access.
package telemetry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Meters bundles the counters shared across the Sightings Processor,
// Remote Uploader, and Reconnector.
type Meters struct {
	provider *sdkmetric.MeterProvider

	readsClassified   metric.Int64Counter
	sightingsProduced metric.Int64Counter
	uploadBatches     metric.Int64Counter
	uploadedReads     metric.Int64Counter
	reconnectAttempts metric.Int64Counter
}

// New builds a Meters instance that periodically exports to stdout.
func New() (*Meters, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	meter := provider.Meter("github.com/chronokeeptiming/portal")

	m := &Meters{provider: provider}
	if m.readsClassified, err = meter.Int64Counter("portal.reads.classified"); err != nil {
		return nil, err
	}
	if m.sightingsProduced, err = meter.Int64Counter("portal.sightings.produced"); err != nil {
		return nil, err
	}
	if m.uploadBatches, err = meter.Int64Counter("portal.upload.batches"); err != nil {
		return nil, err
	}
	if m.uploadedReads, err = meter.Int64Counter("portal.upload.reads"); err != nil {
		return nil, err
	}
	if m.reconnectAttempts, err = meter.Int64Counter("portal.reader.reconnect_attempts"); err != nil {
		return nil, err
	}
	return m, nil
}

// Shutdown flushes pending exports.
func (m *Meters) Shutdown(ctx context.Context) {
	if err := m.provider.Shutdown(ctx); err != nil {
		log.Printf("telemetry: shutdown error: %v", err)
	}
}

func (m *Meters) ReadsClassified(n int) {
	m.readsClassified.Add(context.Background(), int64(n))
}

func (m *Meters) SightingsProduced(n int) {
	m.sightingsProduced.Add(context.Background(), int64(n))
}

func (m *Meters) UploadBatch(reads int) {
	m.uploadBatches.Add(context.Background(), 1)
	m.uploadedReads.Add(context.Background(), int64(reads))
}

func (m *Meters) ReconnectAttempt() {
	m.reconnectAttempts.Add(context.Background(), 1)
}
