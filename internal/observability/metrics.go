package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/leadfisco/fiscaldesk"

// PersistMetrics aggregates the counters emitted by the persistence pipeline.
type PersistMetrics struct {
	factsInserted   metric.Int64Counter
	factsSkipped    metric.Int64Counter
	persistFailures metric.Int64Counter
	providerRetries metric.Int64Counter
	shardOverflows  metric.Int64Counter
	payloadBytes    metric.Int64Histogram
}

// NewPersistMetrics registers persistence instruments on the global meter
// provider. Instrument creation failures degrade to nil instruments, which
// record nothing.
func NewPersistMetrics() *PersistMetrics {
	meter := otel.GetMeterProvider().Meter(meterName)
	m := new(PersistMetrics)
	m.factsInserted, _ = meter.Int64Counter("fiscaldesk.facts.inserted",
		metric.WithDescription("Fact rows appended to the fact table"))
	m.factsSkipped, _ = meter.Int64Counter("fiscaldesk.facts.skipped",
		metric.WithDescription("Candidate facts dropped by the dedup filter"))
	m.persistFailures, _ = meter.Int64Counter("fiscaldesk.persist.failures",
		metric.WithDescription("Writes contained at the orchestrator boundary"))
	m.providerRetries, _ = meter.Int64Counter("fiscaldesk.provider.retries",
		metric.WithDescription("Transient provider call retries"))
	m.shardOverflows, _ = meter.Int64Counter("fiscaldesk.shard.overflows",
		metric.WithDescription("Snapshot payloads whose second shard exceeded the cell limit"))
	m.payloadBytes, _ = meter.Int64Histogram("fiscaldesk.snapshot.payload_bytes",
		metric.WithDescription("Encoded snapshot payload size"))
	return m
}

// RecordFacts records dedup outcomes for one persistence call.
func (m *PersistMetrics) RecordFacts(ctx context.Context, clienteID string, inserted, skipped int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cliente_id", clienteID))
	if m.factsInserted != nil {
		m.factsInserted.Add(ctx, int64(inserted), attrs)
	}
	if m.factsSkipped != nil {
		m.factsSkipped.Add(ctx, int64(skipped), attrs)
	}
}

// RecordPersistFailure counts a contained persistence failure.
func (m *PersistMetrics) RecordPersistFailure(ctx context.Context, clienteID string) {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("cliente_id", clienteID)))
}

// RecordProviderRetry counts one retried provider call.
func (m *PersistMetrics) RecordProviderRetry(ctx context.Context) {
	if m == nil || m.providerRetries == nil {
		return
	}
	m.providerRetries.Add(ctx, 1)
}

// RecordShardOverflow counts a payload whose second shard exceeded the limit.
func (m *PersistMetrics) RecordShardOverflow(ctx context.Context) {
	if m == nil || m.shardOverflows == nil {
		return
	}
	m.shardOverflows.Add(ctx, 1)
}

// RecordPayloadBytes observes the encoded snapshot payload size.
func (m *PersistMetrics) RecordPayloadBytes(ctx context.Context, bytes int) {
	if m == nil || m.payloadBytes == nil {
		return
	}
	m.payloadBytes.Record(ctx, int64(bytes))
}

var defaultMetrics *PersistMetrics

// SetMetrics overrides the global persistence metrics collector.
func SetMetrics(metrics *PersistMetrics) {
	defaultMetrics = metrics
}

// Metrics returns the current global persistence metrics collector, which may
// be nil when telemetry is disabled.
func Metrics() *PersistMetrics {
	return defaultMetrics
}
