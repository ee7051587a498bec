package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func TestNewSyncMetrics(t *testing.T) {
	t.Run("requires a meter", func(t *testing.T) {
		_, err := NewSyncMetrics(SyncMetricsConfig{})
		assert.ErrorIs(t, err, ErrMeterNil)
	})

	t.Run("creates all instruments", func(t *testing.T) {
		meter := noop.NewMeterProvider().Meter("test")
		sm, err := NewSyncMetrics(SyncMetricsConfig{Meter: meter, Logger: zap.NewNop()})
		require.NoError(t, err)
		require.NotNil(t, sm)
	})
}

func TestSyncMetrics_NilSafe(t *testing.T) {
	var sm *SyncMetrics
	ctx := context.Background()

	// None of these may panic on a nil receiver.
	sm.RecordRun(ctx, "S1", "SUCCESS", time.Second)
	sm.RecordRequests(ctx, "S1", 3)
	sm.RecordSalesUpserted(ctx, "S1", 10)
	sm.RecordError(ctx, "S1")
}

func TestSyncMetrics_Record(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	sm, err := NewSyncMetrics(SyncMetricsConfig{Meter: meter})
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordRun(ctx, "S1", "ERROR", 42*time.Second)
	sm.RecordRequests(ctx, "S1", 5)
	sm.RecordRequests(ctx, "S1", 0) // ignored
	sm.RecordSalesUpserted(ctx, "S1", 100)
	sm.RecordError(ctx, "S1")
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(context.Background()))
	assert.NoError(t, mp.ForceFlush(context.Background()))
}
