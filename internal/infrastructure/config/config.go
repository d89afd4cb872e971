package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Event     EventConfig     `mapstructure:"event"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Treasury  TreasuryConfig  `mapstructure:"treasury"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds database connection settings. Lifetimes are minutes.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string        `mapstructure:"secret"`
	Issuer                string        `mapstructure:"issuer"`
	AccessTokenExpiration time.Duration `mapstructure:"access_token_expiration"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

// EventConfig holds outbox relay settings
type EventConfig struct {
	ProcessorEnabled bool          `mapstructure:"processor_enabled"`
	BatchSize        int           `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	CleanupEnabled   bool          `mapstructure:"cleanup_enabled"`
	CleanupRetention time.Duration `mapstructure:"cleanup_retention"`
}

// KafkaConfig holds the broker the outbox relays to
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// TreasuryConfig holds money-movement settings
type TreasuryConfig struct {
	IdempotencyEnabled bool          `mapstructure:"idempotency_enabled"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`

	// OverdueSweepSchedule is a cron expression; only minute and hour are read
	OverdueSweepEnabled  bool   `mapstructure:"overdue_sweep_enabled"`
	OverdueSweepSchedule string `mapstructure:"overdue_sweep_schedule"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTLP gRPC, e.g. "localhost:4317"
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`     // 0.0 to 1.0
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	LogsEnabled       bool    `mapstructure:"logs_enabled"`

	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // dev only
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// ProfilingConfig holds continuous profiling configuration
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
	SampleRate    int    `mapstructure:"sample_rate"`
}

// defaults lists every key with its built-in value. Registering each key
// also lets viper resolve its TREASURY_ environment variable in Unmarshal.
var defaults = map[string]any{
	"app.name": "treasury",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "treasury",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.auto_migrate":       false,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret":                  "",
	"jwt.issuer":                  "treasury",
	"jwt.access_token_expiration": 15 * time.Minute,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"event.processor_enabled": false,
	"event.batch_size":        100,
	"event.poll_interval":     5 * time.Second,
	"event.cleanup_enabled":   false,
	"event.cleanup_retention": 7 * 24 * time.Hour,

	"kafka.enabled":       false,
	"kafka.brokers":       []string{},
	"kafka.topic":         "treasury.events",
	"kafka.write_timeout": 10 * time.Second,

	"treasury.idempotency_enabled":    true,
	"treasury.idempotency_ttl":        24 * time.Hour,
	"treasury.overdue_sweep_enabled":  false,
	"treasury.overdue_sweep_schedule": "0 2 * * *",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    1 << 20,
	// No origin is allowed cross-origin unless configured
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "DELETE", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
	"http.trusted_proxies":    []string{},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"profiling.enabled":        false,
	"profiling.server_address": "http://localhost:4040",
	"profiling.sample_rate":    100,
}

// Load reads config.toml (from ., ./config or /etc/treasury) and overlays
// TREASURY_ environment variables, e.g. TREASURY_DATABASE_PASSWORD.
// Keys set nowhere keep their built-in default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/treasury")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("TREASURY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.App.Port == "" {
		return fmt.Errorf("app.port is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
