package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics holds counters for the sync engine
type SyncMetrics struct {
	entriesDone    metric.Int64Counter
	entriesFailed  metric.Int64Counter
	photosUploaded metric.Int64Counter
	bytesUploaded  metric.Int64Counter
	pushDuration   metric.Float64Histogram
	pullDuration   metric.Float64Histogram
}

// NewSyncMetrics creates sync metrics instruments
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.Meter(instrumentationName)

	entriesDone, err := meter.Int64Counter(
		"sync.entries.done",
		metric.WithDescription("Queue entries acknowledged by the remote store"),
		metric.WithUnit("{entries}"),
	)
	if err != nil {
		return nil, err
	}

	entriesFailed, err := meter.Int64Counter(
		"sync.entries.failed",
		metric.WithDescription("Queue entry upload failures by kind"),
		metric.WithUnit("{entries}"),
	)
	if err != nil {
		return nil, err
	}

	photosUploaded, err := meter.Int64Counter(
		"sync.photos.uploaded",
		metric.WithDescription("Photos uploaded to remote storage"),
		metric.WithUnit("{photos}"),
	)
	if err != nil {
		return nil, err
	}

	bytesUploaded, err := meter.Int64Counter(
		"sync.photos.bytes",
		metric.WithDescription("Bytes of photo data uploaded"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	pushDuration, err := meter.Float64Histogram(
		"sync.push.duration",
		metric.WithDescription("Duration of a push cycle in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	pullDuration, err := meter.Float64Histogram(
		"sync.pull.duration",
		metric.WithDescription("Duration of a pull cycle in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		entriesDone:    entriesDone,
		entriesFailed:  entriesFailed,
		photosUploaded: photosUploaded,
		bytesUploaded:  bytesUploaded,
		pushDuration:   pushDuration,
		pullDuration:   pullDuration,
	}, nil
}

// RecordEntryDone records an acknowledged queue entry
func (m *SyncMetrics) RecordEntryDone(ctx context.Context, entityType string) {
	if m == nil {
		return
	}
	m.entriesDone.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_type", entityType)))
}

// RecordEntryFailed records a failed upload attempt
func (m *SyncMetrics) RecordEntryFailed(ctx context.Context, entityType, kind string) {
	if m == nil {
		return
	}
	m.entriesFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity_type", entityType),
		attribute.String("kind", kind),
	))
}

// RecordPhotoUploaded records a completed photo upload
func (m *SyncMetrics) RecordPhotoUploaded(ctx context.Context, size int64) {
	if m == nil {
		return
	}
	m.photosUploaded.Add(ctx, 1)
	m.bytesUploaded.Add(ctx, size)
}

// RecordPush records the duration of a push cycle
func (m *SyncMetrics) RecordPush(ctx context.Context, d time.Duration, processed int) {
	if m == nil {
		return
	}
	m.pushDuration.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(attribute.Int("processed", processed)))
}

// RecordPull records the duration of a pull cycle
func (m *SyncMetrics) RecordPull(ctx context.Context, d time.Duration, properties int) {
	if m == nil {
		return
	}
	m.pullDuration.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(attribute.Int("properties", properties)))
}
