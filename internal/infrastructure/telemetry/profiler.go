package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds Pyroscope continuous profiling configuration
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string
	// MutexProfileFraction enables mutex profiles when positive. Row-lock
	// contention on hot cash boxes shows up here.
	MutexProfileFraction int
}

// Profiler wraps the Pyroscope profiler with idempotent shutdown
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	once     sync.Once
}

// NewProfiler starts continuous profiling. A disabled config yields a
// profiler whose Stop is a no-op.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServerAddress == "" || cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler server address and application name are required")
	}

	types := []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}
	if cfg.MutexProfileFraction > 0 {
		runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
		types = append(types, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration)
	}

	tags := map[string]string{}
	if hostname, err := os.Hostname(); err == nil {
		tags["hostname"] = hostname
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          pyroscopeLogger{logger.Named("pyroscope").Sugar()},
		Tags:            tags,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = profiler

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

// Stop flushes pending profiles. It is safe to call more than once.
func (p *Profiler) Stop() error {
	var err error
	p.once.Do(func() {
		if p.profiler != nil {
			err = p.profiler.Stop()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to stop profiler: %w", err)
	}
	return nil
}

// IsEnabled reports whether profiles are being collected
func (p *Profiler) IsEnabled() bool {
	return p.profiler != nil
}

type pyroscopeLogger struct {
	*zap.SugaredLogger
}
