package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const metricsExportInterval = 30 * time.Second

// MeterProvider owns the SDK meter provider for the process lifetime
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
}

// NewMeterProvider installs a global meter provider exporting over OTLP
// gRPC. When disabled the global no-op provider is kept.
func NewMeterProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*MeterProvider, error) {
	if !cfg.Enabled {
		return &MeterProvider{}, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	mp := NewMeterProviderWithReader(
		sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricsExportInterval)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
	)
	return mp, nil
}

// NewMeterProviderWithReader builds a provider around an explicit reader
// without touching the global provider
func NewMeterProviderWithReader(reader sdkmetric.Reader, opts ...sdkmetric.Option) *MeterProvider {
	opts = append(opts, sdkmetric.WithReader(reader))
	return &MeterProvider{provider: sdkmetric.NewMeterProvider(opts...)}
}

// Meter returns a named meter, falling back to the global provider
func (mp *MeterProvider) Meter(name string) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return mp.provider.Meter(name)
}

// Shutdown flushes pending measurements
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := mp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Metric attribute keys
var (
	AttrTenantID  = attribute.Key("tenant_id")
	AttrEntryType = attribute.Key("entry_type")
	AttrOperation = attribute.Key("operation")
	AttrErrorCode = attribute.Key("error_code")
)

// TreasuryMetrics records business counters for ledger movements
type TreasuryMetrics struct {
	entries    metric.Int64Counter
	amount     metric.Float64Counter
	rejections metric.Int64Counter
}

// NewTreasuryMetrics creates the treasury instruments on meter
func NewTreasuryMetrics(meter metric.Meter) (*TreasuryMetrics, error) {
	entries, err := meter.Int64Counter("treasury.ledger.entries",
		metric.WithDescription("Ledger entries posted"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entries counter: %w", err)
	}
	amount, err := meter.Float64Counter("treasury.ledger.amount",
		metric.WithDescription("Absolute amount moved by posted ledger entries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create amount counter: %w", err)
	}
	rejections, err := meter.Int64Counter("treasury.operation.rejections",
		metric.WithDescription("Operations refused, by error code"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rejections counter: %w", err)
	}
	return &TreasuryMetrics{entries: entries, amount: amount, rejections: rejections}, nil
}

// RecordEntry counts a posted ledger entry and its absolute amount
func (m *TreasuryMetrics) RecordEntry(ctx context.Context, tenantID uuid.UUID, entryType string, amount decimal.Decimal) {
	attrs := metric.WithAttributes(AttrTenantID.String(tenantID.String()), AttrEntryType.String(entryType))
	m.entries.Add(ctx, 1, attrs)
	m.amount.Add(ctx, amount.Abs().InexactFloat64(), attrs)
}

// RecordRejection counts an operation refused with a domain error code
func (m *TreasuryMetrics) RecordRejection(ctx context.Context, tenantID uuid.UUID, operation, code string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
		AttrErrorCode.String(code),
	))
}
