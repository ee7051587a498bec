// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics constructor receives no meter.
var ErrMeterNil = errors.New("telemetry: meter is required")

// SyncMetrics tracks the sales synchronization pipeline: runs, upstream
// request volume, upserted sales and recorded faults.
// All record methods are nil-safe so callers never need to guard on whether
// telemetry is wired.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	runsTotal          *Counter
	upstreamRequests   *Counter
	salesUpsertedTotal *Counter
	syncErrorsTotal    *Counter
	runDuration        *Histogram
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	sm.runsTotal, err = NewCounter(
		cfg.Meter,
		"possync_runs_total",
		"Total number of sync runs, labeled by terminal status",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	sm.upstreamRequests, err = NewCounter(
		cfg.Meter,
		"possync_upstream_requests_total",
		"Total number of upstream page requests issued",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	sm.salesUpsertedTotal, err = NewCounter(
		cfg.Meter,
		"possync_sales_upserted_total",
		"Total number of sales written (inserted or refreshed)",
		"{sales}",
	)
	if err != nil {
		return nil, err
	}

	sm.syncErrorsTotal, err = NewCounter(
		cfg.Meter,
		"possync_errors_total",
		"Total number of recoverable errors recorded during runs",
		"{errors}",
	)
	if err != nil {
		return nil, err
	}

	sm.runDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "possync_run_duration_seconds",
		Description: "Wall-clock duration of sync runs",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordRun records a finished run with its terminal status and duration.
func (sm *SyncMetrics) RecordRun(ctx context.Context, storeID, status string, duration time.Duration) {
	if sm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrStoreID.String(storeID),
		AttrRunStatus.String(status),
	}
	sm.runsTotal.Inc(ctx, attrs...)
	sm.runDuration.RecordDuration(ctx, duration, attrs...)
}

// RecordRequests adds upstream request volume for a store.
func (sm *SyncMetrics) RecordRequests(ctx context.Context, storeID string, n int) {
	if sm == nil || n <= 0 {
		return
	}
	sm.upstreamRequests.Add(ctx, int64(n), AttrStoreID.String(storeID))
}

// RecordSalesUpserted adds the number of sales written for a store.
func (sm *SyncMetrics) RecordSalesUpserted(ctx context.Context, storeID string, n int) {
	if sm == nil || n <= 0 {
		return
	}
	sm.salesUpsertedTotal.Add(ctx, int64(n), AttrStoreID.String(storeID))
}

// RecordError counts one recoverable error for a store.
func (sm *SyncMetrics) RecordError(ctx context.Context, storeID string) {
	if sm == nil {
		return
	}
	sm.syncErrorsTotal.Inc(ctx, AttrStoreID.String(storeID))
}
