package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/treasury/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database owns the gorm handle shared by every repository
type Database struct {
	DB *gorm.DB
}

// Option customizes the gorm configuration used by Open
type Option func(*gorm.Config)

// WithGormLogger replaces the default silent gorm logger
func WithGormLogger(l gormlogger.Interface) Option {
	return func(c *gorm.Config) {
		c.Logger = l
	}
}

// NewDatabase connects to PostgreSQL, sizes the pool from cfg and checks
// the connection before returning.
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	db, err := Open(postgres.Open(cfg.DSN()), opts...)
	if err != nil {
		return nil, err
	}

	pool, err := db.pool()
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Open opens a database through any dialector. TranslateError is on, so a
// unique violation surfaces as gorm.ErrDuplicatedKey whatever the driver.
func Open(dialector gorm.Dialector, opts ...Option) (*Database, error) {
	cfg := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &Database{DB: db}, nil
}

func (d *Database) pool() (*sql.DB, error) {
	pool, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	return pool, nil
}

// Ping checks the connection, used by the readiness probe
func (d *Database) Ping(ctx context.Context) error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// Close closes the connection pool
func (d *Database) Close() error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.Close()
}
