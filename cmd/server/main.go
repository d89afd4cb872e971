package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinstallment "github.com/erp/treasury/internal/application/installment"
	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/infrastructure/auth"
	"github.com/erp/treasury/internal/infrastructure/cache"
	"github.com/erp/treasury/internal/infrastructure/config"
	"github.com/erp/treasury/internal/infrastructure/event"
	"github.com/erp/treasury/internal/infrastructure/logger"
	"github.com/erp/treasury/internal/infrastructure/migration"
	"github.com/erp/treasury/internal/infrastructure/persistence"
	"github.com/erp/treasury/internal/infrastructure/scheduler"
	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/erp/treasury/internal/interfaces/http/handler"
	"github.com/erp/treasury/internal/interfaces/http/middleware"
	"github.com/erp/treasury/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		SpanProfiles:      cfg.Profiling.Enabled,
	}

	// OTLP log export is teed into the process logger when enabled
	logsCfg := telemetryCfg
	logsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled
	logProvider, err := telemetry.NewLoggerProvider(ctx, logsCfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	var extraCores []zapcore.Core
	if core := logProvider.Core(logger.ParseLevel(cfg.Log.Level)); core != nil {
		extraCores = append(extraCores, core)
	}
	log, err := logger.New(logCfg, extraCores...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting treasury service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:              cfg.Profiling.Enabled,
		ServerAddress:        cfg.Profiling.ServerAddress,
		ApplicationName:      cfg.Telemetry.ServiceName,
		MutexProfileFraction: cfg.Profiling.SampleRate,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	metricsCfg := telemetryCfg
	metricsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled
	meterProvider, err := telemetry.NewMeterProvider(ctx, metricsCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		if err := runMigrations(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Events: the outbox is written inside each money transaction and
	// relayed after commit
	serializer := event.NewDomainEventSerializer()
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB, event.RecorderFactory(serializer))

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewAuditLogHandler(log))
	publishers := event.FanoutPublisher{bus}
	if cfg.Kafka.Enabled {
		kafkaPublisher := event.NewKafkaPublisher(event.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, log)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		publishers = append(publishers, kafkaPublisher)
		log.Info("Kafka relay enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	var outboxProcessor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		processorCfg := event.DefaultOutboxProcessorConfig()
		processorCfg.BatchSize = cfg.Event.BatchSize
		processorCfg.PollInterval = cfg.Event.PollInterval
		processorCfg.CleanupEnabled = cfg.Event.CleanupEnabled
		processorCfg.CleanupRetention = cfg.Event.CleanupRetention
		outboxProcessor = event.NewOutboxProcessor(outboxRepo, publishers, serializer, processorCfg, log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	// Idempotency keys are shared through Redis when it is configured
	healthChecks := map[string]handler.Pinger{
		"database": handler.PingFunc(db.Ping),
	}
	var idempotencyStore shared.IdempotencyStore
	if cfg.Treasury.IdempotencyEnabled {
		idempotencyStore, err = cache.NewIdempotencyStore(cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(cfg.App.Env != "production"),
		)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			_ = idempotencyStore.Close()
		}()
		if cfg.Redis.Enabled {
			healthChecks["redis"] = handler.PingFunc(idempotencyStore.Ping)
		}
	}

	treasuryMetrics, err := telemetry.NewTreasuryMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create treasury metrics", zap.Error(err))
	}
	serviceOpts := []apptreasury.ServiceOption{
		apptreasury.WithIdempotency(apptreasury.NewIdempotencyGuard(idempotencyStore, shared.IdempotencyConfig{
			Enabled: cfg.Treasury.IdempotencyEnabled,
			TTL:     cfg.Treasury.IdempotencyTTL,
		})),
		apptreasury.WithMetrics(treasuryMetrics),
		apptreasury.WithLogger(log),
	}

	// Repositories and services
	cashBoxRepo := persistence.NewGormCashBoxRepository(db.DB)
	cashBoxTypeRepo := persistence.NewGormCashBoxTypeRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	planRepo := persistence.NewGormPlanRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)

	cashBoxService := apptreasury.NewCashBoxService(scope, cashBoxRepo, cashBoxTypeRepo, ledgerRepo, serviceOpts...)
	ledgerService := apptreasury.NewLedgerService(scope, cashBoxRepo, ledgerRepo, serviceOpts...)
	planService := appinstallment.NewPlanService(scope, planRepo, serviceOpts...)
	paymentService := appinstallment.NewPaymentService(scope, planRepo, paymentRepo, cashBoxRepo, serviceOpts...)

	var overdueSweeper *scheduler.OverdueSweeper
	if cfg.Treasury.OverdueSweepEnabled {
		sweepCfg := scheduler.DefaultOverdueSweeperConfig()
		sweepCfg.RunHour, sweepCfg.RunMinute, err = scheduler.ParseCronSchedule(cfg.Treasury.OverdueSweepSchedule)
		if err != nil {
			log.Fatal("Invalid overdue sweep schedule", zap.Error(err))
		}
		overdueSweeper, err = scheduler.NewOverdueSweeper(sweepCfg, planService, log)
		if err != nil {
			log.Fatal("Failed to create overdue sweeper", zap.Error(err))
		}
		if err := overdueSweeper.Start(ctx); err != nil {
			log.Fatal("Failed to start overdue sweeper", zap.Error(err))
		}
	}

	treasuryHandler := handler.NewTreasuryHandler(cashBoxService, ledgerService)
	installmentHandler := handler.NewInstallmentHandler(planService, paymentService)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, healthChecks)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = cfg.Telemetry.Enabled
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.TracingWithConfig(tracingCfg),
		httpMetrics,
	)

	engine.GET("/health", systemHandler.Health)
	engine.GET("/healthz", systemHandler.Health)

	jwtService := auth.NewJWTService(cfg.JWT)
	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.Logger = log

	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = profiler.IsEnabled()

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(
		middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.ProfilingWithConfig(profilingCfg),
	)
	r.Register(router.TreasuryRoutes(treasuryHandler)).
		Register(router.InstallmentRoutes(installmentHandler)).
		Register(router.SystemRoutes(systemHandler))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if overdueSweeper != nil {
		if err := overdueSweeper.Stop(shutdownCtx); err != nil {
			log.Error("Overdue sweeper did not stop cleanly", zap.Error(err))
		}
	}
	if outboxProcessor != nil {
		if err := outboxProcessor.Stop(shutdownCtx); err != nil {
			log.Error("Outbox processor did not stop cleanly", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Failed to stop profiler", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush logs", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// runMigrations applies the embedded schema migrations
func runMigrations(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared connection pool
	return m.Up()
}
