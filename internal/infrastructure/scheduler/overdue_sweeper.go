package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	appinstallment "github.com/erp/treasury/internal/application/installment"
	"go.uber.org/zap"
)

// OverdueMarker flags unpaid installments past their due date across all tenants
type OverdueMarker interface {
	SweepOverdue(ctx context.Context, asOf time.Time) (*appinstallment.MarkOverdueResult, error)
}

// OverdueSweeperConfig holds configuration for the overdue sweeper
type OverdueSweeperConfig struct {
	// RunHour and RunMinute give the daily run time (24h, local clock)
	RunHour   int
	RunMinute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// SweepTimeout bounds a single sweep
	SweepTimeout time.Duration
}

// DefaultOverdueSweeperConfig returns default overdue sweeper configuration
func DefaultOverdueSweeperConfig() OverdueSweeperConfig {
	return OverdueSweeperConfig{
		RunHour:       2, // 2am
		RunMinute:     0,
		CheckInterval: time.Minute,
		SweepTimeout:  10 * time.Minute,
	}
}

// Validate checks the configuration
func (c OverdueSweeperConfig) Validate() error {
	if c.RunHour < 0 || c.RunHour > 23 || c.RunMinute < 0 || c.RunMinute > 59 {
		return fmt.Errorf("%w: run time %02d:%02d", ErrInvalidConfig, c.RunHour, c.RunMinute)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// ParseCronSchedule reads the hour and minute out of a daily cron
// expression such as "30 3 * * *". Only the first two fields are used.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour, minute = 2, 0

	parts := strings.Fields(cronExpr)
	if len(parts) < 2 {
		return hour, minute, nil
	}

	if parts[0] != "*" {
		if minute, err = strconv.Atoi(parts[0]); err != nil {
			return 2, 0, fmt.Errorf("%w: minute %q", ErrInvalidConfig, parts[0])
		}
	}
	if parts[1] != "*" {
		if hour, err = strconv.Atoi(parts[1]); err != nil {
			return 2, 0, fmt.Errorf("%w: hour %q", ErrInvalidConfig, parts[1])
		}
	}

	if minute < 0 || minute > 59 {
		return 2, 0, fmt.Errorf("minute must be 0-59, got %d", minute)
	}
	if hour < 0 || hour > 23 {
		return 2, 0, fmt.Errorf("hour must be 0-23, got %d", hour)
	}
	return hour, minute, nil
}

// OverdueSweeper marks overdue installments once a day
type OverdueSweeper struct {
	config OverdueSweeperConfig
	marker OverdueMarker
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
	lastResult  *appinstallment.MarkOverdueResult
}

// NewOverdueSweeper creates a new overdue sweeper
func NewOverdueSweeper(config OverdueSweeperConfig, marker OverdueMarker, logger *zap.Logger) (*OverdueSweeper, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweeper{
		config: config,
		marker: marker,
		logger: logger.Named("overdue_sweeper"),
		now:    time.Now,
	}, nil
}

// Start starts the sweeper loop
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Overdue sweeper started",
		zap.Int("run_hour", s.config.RunHour),
		zap.Int("run_minute", s.config.RunMinute),
		zap.Duration("check_interval", s.config.CheckInterval),
	)
	return nil
}

// Stop stops the sweeper, waiting for a running sweep to finish
func (s *OverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *OverdueSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerManualRun sweeps immediately, regardless of the daily schedule
func (s *OverdueSweeper) TriggerManualRun(ctx context.Context) (*appinstallment.MarkOverdueResult, error) {
	if !s.IsRunning() {
		return nil, ErrSchedulerNotRunning
	}
	return s.sweep(ctx, s.now())
}

// LastResult returns the outcome of the most recent sweep, or nil
func (s *OverdueSweeper) LastResult() *appinstallment.MarkOverdueResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

func (s *OverdueSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// checkAndRun sweeps at most once per calendar day, at the configured time
func (s *OverdueSweeper) checkAndRun(ctx context.Context) bool {
	now := s.now()
	currentDate := now.Format("2006-01-02")

	s.mu.Lock()
	if s.lastRunDate == currentDate || !s.shouldRun(now) {
		s.mu.Unlock()
		return false
	}
	s.lastRunDate = currentDate
	s.mu.Unlock()

	if _, err := s.sweep(ctx, now); err != nil {
		s.logger.Error("Overdue sweep failed", zap.Error(err))
	}
	return true
}

func (s *OverdueSweeper) shouldRun(now time.Time) bool {
	return now.Hour() == s.config.RunHour && now.Minute() == s.config.RunMinute
}

func (s *OverdueSweeper) sweep(ctx context.Context, asOf time.Time) (*appinstallment.MarkOverdueResult, error) {
	if s.config.SweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SweepTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.marker.SweepOverdue(ctx, asOf.UTC())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	s.logger.Info("Overdue sweep completed",
		zap.Int("plans", result.Plans),
		zap.Int("installments", result.Installments),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}
