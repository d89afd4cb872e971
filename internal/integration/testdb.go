//go:build integration

// Package integration runs the treasury services against a real PostgreSQL
// started with testcontainers. Run with: go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/treasury/internal/infrastructure/migration"
	"github.com/erp/treasury/internal/infrastructure/persistence"
)

// TestDB is a migrated PostgreSQL database owned by one test
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
}

// NewTestDB starts a PostgreSQL container, applies the embedded migrations
// and registers cleanup on t.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("treasury_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	database, err := persistence.Open(gormpostgres.Open(dsn),
		persistence.WithGormLogger(gormlogger.Default.LogMode(level)))
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to apply migrations")

	tdb := &TestDB{DB: database.DB, SqlDB: sqlDB, Container: container, DSN: dsn}
	t.Cleanup(func() {
		_ = sqlDB.Close()
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})
	return tdb
}
