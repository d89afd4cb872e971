package telemetry_test

import (
	"context"
	"testing"

	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestTreasuryMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := telemetry.NewTreasuryMetrics(mp.Meter("treasury"))
	require.NoError(t, err)

	ctx := context.Background()
	tenant := uuid.New()
	m.RecordEntry(ctx, tenant, "deposit", decimal.NewFromInt(1000))
	m.RecordEntry(ctx, tenant, "withdrawal", decimal.NewFromInt(-300))
	m.RecordRejection(ctx, tenant, "withdraw", "INSUFFICIENT_FUNDS")

	metrics := collect(t, reader)

	entries, ok := metrics["treasury.ledger.entries"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, entries.DataPoints, 2)
	for _, dp := range entries.DataPoints {
		assert.Equal(t, int64(1), dp.Value)
		v, _ := dp.Attributes.Value(telemetry.AttrTenantID)
		assert.Equal(t, tenant.String(), v.AsString())
	}

	amount, ok := metrics["treasury.ledger.amount"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	var total float64
	for _, dp := range amount.DataPoints {
		total += dp.Value
	}
	assert.InDelta(t, 1300.0, total, 0.001)

	rejections, ok := metrics["treasury.operation.rejections"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, rejections.DataPoints, 1)
	code, _ := rejections.DataPoints[0].Attributes.Value(attribute.Key("error_code"))
	assert.Equal(t, "INSUFFICIENT_FUNDS", code.AsString())
}

func TestMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.Config{Enabled: false}, zapNop())
	require.NoError(t, err)
	assert.NotNil(t, mp.Meter("treasury"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}
