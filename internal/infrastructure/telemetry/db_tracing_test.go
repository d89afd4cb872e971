package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tracedRow struct {
	ID   int `gorm:"primaryKey"`
	Name string
}

func openTracedDB(t *testing.T, cfg telemetry.DBTracingConfig) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	require.NoError(t, telemetry.RegisterDBTracing(db, cfg, zapNop()))
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTracedDB(t, telemetry.DBTracingConfig{Enabled: false})

	require.NoError(t, db.Create(&tracedRow{Name: "a"}).Error)
	assert.Empty(t, sr.Ended())
}

func TestRegisterDBTracing_RowLock(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTracedDB(t, telemetry.DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour})

	require.NoError(t, db.Create(&tracedRow{Name: "a"}).Error)

	ctx, span := otel.Tracer("test").Start(context.Background(), "lock")
	var rows []tracedRow
	require.NoError(t, db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Find(&rows).Error)
	span.End()

	var found bool
	for _, s := range sr.Ended() {
		attrs := attrMap(s.Attributes())
		if v, ok := attrs["db.row_lock"]; ok && v.AsBool() {
			found = true
			assert.Contains(t, attrs, "db.lock_wait_ms")
			assert.NotContains(t, attrs, "db.slow_query")
		}
	}
	assert.True(t, found, "expected a span flagged as row lock")
}
