package testutil

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/treasury/internal/infrastructure/persistence/models"
	"github.com/erp/treasury/migrations"
)

// sqliteTypes rewrites the PostgreSQL column types SQLite cannot read back
// into Go values. Everything else in the migrations is portable.
var sqliteTypes = strings.NewReplacer(
	"TIMESTAMPTZ", "DATETIME",
	"JSONB", "BLOB",
)

// NewSQLiteDB opens a private in-memory SQLite database with the treasury,
// installment and outbox tables created from the GORM models.
//
// The pool is limited to one connection, so transactions run one at a time.
// SQLite ignores SELECT ... FOR UPDATE; serializing the pool gives the same
// mutual exclusion the row locks give on PostgreSQL.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openSQLite(t)

	tables := append(models.TreasuryModels(), models.InstallmentModels()...)
	tables = append(tables, &models.OutboxEntryModel{})
	require.NoError(t, db.AutoMigrate(tables...), "Failed to migrate SQLite schema")
	return db
}

// NewMigratedSQLiteDB opens a private in-memory SQLite database whose schema
// comes from the embedded *.up.sql files, so the CHECK constraints, foreign
// keys and partial indexes shipped to production apply to the test.
func NewMigratedSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openSQLite(t)

	for _, name := range UpMigrations(t) {
		raw, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		require.NoError(t, db.Exec(sqliteTypes.Replace(string(raw))).Error, "Failed to apply %s", name)
	}
	return db
}

// UpMigrations lists the embedded up migrations in version order
func UpMigrations(t *testing.T) []string {
	t.Helper()
	names, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names, "no embedded migrations")
	sort.Strings(names)
	return names
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to open SQLite database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
