package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound variables in db.statement
	SlowQueryThresh time.Duration
}

type dbContextKey string

const queryStartKey dbContextKey = "treasury_query_start"

// RegisterDBTracing installs otelgorm plus a timing callback that flags slow
// statements and row-lock (SELECT ... FOR UPDATE) waits on the current span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	var opts []otelgorm.Option
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerTiming(db, cfg.SlowQueryThresh); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func registerTiming(db *gorm.DB, thresh time.Duration) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey, time.Now())
		}
	}
	after := timingCallback(thresh)

	// after callbacks must run before otelgorm ends the span
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("treasury:timing_before_create", before),
		cb.Create().After("gorm:create").Before("otel:after_create").Register("treasury:timing_after_create", after),
		cb.Query().Before("gorm:query").Register("treasury:timing_before_query", before),
		cb.Query().After("gorm:query").Before("otel:after_query").Register("treasury:timing_after_query", after),
		cb.Update().Before("gorm:update").Register("treasury:timing_before_update", before),
		cb.Update().After("gorm:update").Before("otel:after_update").Register("treasury:timing_after_update", after),
		cb.Delete().Before("gorm:delete").Register("treasury:timing_before_delete", before),
		cb.Delete().After("gorm:delete").Before("otel:after_delete").Register("treasury:timing_after_delete", after),
		cb.Raw().Before("gorm:raw").Register("treasury:timing_before_raw", before),
		cb.Raw().After("gorm:raw").Before("otel:after_raw").Register("treasury:timing_after_raw", after),
	)
}

func timingCallback(thresh time.Duration) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}

		if tx.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
		}
		_, locking := tx.Statement.Clauses["FOR"]
		if locking {
			span.SetAttributes(attribute.Bool("db.row_lock", true))
		}

		start, ok := ctx.Value(queryStartKey).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		if locking {
			span.SetAttributes(attribute.Int64("db.lock_wait_ms", elapsed.Milliseconds()))
		}
		if thresh > 0 && elapsed > thresh {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", thresh.Milliseconds()),
			))
		}
	}
}
