package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "treasury", "transfer",
		attribute.String(telemetry.SpanAttrCashBoxID, "box-1"),
	)
	assert.NotEmpty(t, telemetry.TraceID(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "treasury.transfer", spans[0].Name())
	assert.Equal(t, "box-1", attrMap(spans[0].Attributes())[telemetry.SpanAttrCashBoxID].AsString())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	id := uuid.New()

	_, span := telemetry.StartServiceSpan(context.Background(), "treasury", "deposit")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntryID, id,
		telemetry.SpanAttrAmount, "150.00",
		"count", 3,
		42, "skipped",
		"dangling",
	)
	telemetry.SetAttribute(span, "ok", true)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, id.String(), attrs[telemetry.SpanAttrEntryID].AsString())
	assert.Equal(t, "150.00", attrs[telemetry.SpanAttrAmount].AsString())
	assert.Equal(t, int64(3), attrs["count"].AsInt64())
	assert.True(t, attrs["ok"].AsBool())
	assert.NotContains(t, attrs, "dangling")
	assert.Len(t, attrs, 4)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "treasury", "withdraw")
	telemetry.RecordError(span, errors.New("insufficient funds"))
	span.End()

	got := sr.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "insufficient funds", got.Status().Description)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "exception", got.Events()[0].Name)
}

func TestSetOK(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "treasury", "reverse")
	telemetry.RecordError(span, nil)
	telemetry.SetOK(span)
	span.End()

	got := sr.Ended()[0]
	assert.Equal(t, codes.Ok, got.Status().Code)
	assert.Empty(t, got.Events())
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("boom"))
		telemetry.SetOK(nil)
	})
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.TraceID(context.Background()))
}
