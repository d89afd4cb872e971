// Package testutil provides helpers shared by the treasury test suites:
// sqlmock and in-memory SQLite databases, actors holding permission sets,
// and HTTP request helpers.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB is a postgres-dialect gorm handle over sqlmock
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens a MockDB that is closed when the test ends
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return &MockDB{DB: db, Mock: mock, SqlDB: conn}
}

// ExpectationsWereMet fails the test on unmet sqlmock expectations
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet())
}

// NewTestUUID derives a stable UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("treasury-test:"+seed))
}

// TestTenantID is the tenant used by fixtures that need only one
func TestTenantID() uuid.UUID {
	return NewTestUUID("tenant")
}

// TestUserID is the user used by fixtures that need only one
func TestUserID() uuid.UUID {
	return NewTestUUID("user")
}
