package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/danpasecinic/harvester/internal/health"
	"github.com/danpasecinic/harvester/internal/types"
)

// Config holds the engine settings.
type Config struct {
	WorkerPoolSize int
	// Scheduler orders the pool backlog: "priority" or "fifo"
	Scheduler string

	DefaultMaxRetries  int
	DefaultRetryDelay  time.Duration
	DefaultTaskTimeout time.Duration

	MaintenanceInterval     time.Duration
	MaintenanceErrorBackoff time.Duration
	CleanupInterval         time.Duration
	CompletedRetention      time.Duration
	FailedRetention         time.Duration

	ShutdownTimeout time.Duration

	Health health.Thresholds
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		WorkerPoolSize:          4,
		Scheduler:               "priority",
		DefaultMaxRetries:       3,
		DefaultRetryDelay:       30 * time.Second,
		DefaultTaskTimeout:      30 * time.Minute,
		MaintenanceInterval:     10 * time.Second,
		MaintenanceErrorBackoff: time.Minute,
		CleanupInterval:         time.Hour,
		CompletedRetention:      24 * time.Hour,
		FailedRetention:         72 * time.Hour,
		ShutdownTimeout:         30 * time.Second,
		Health:                  health.DefaultThresholds(),
	}
}

// ConfigFromEnv reads settings from the environment, falling back to
// DefaultConfig for anything unset or unparsable.
func ConfigFromEnv() Config {
	def := DefaultConfig()

	cfg := Config{
		WorkerPoolSize:          getEnvInt("WORKER_POOL_SIZE", def.WorkerPoolSize),
		Scheduler:               getEnv("SCHEDULER", def.Scheduler),
		DefaultMaxRetries:       getEnvInt("DEFAULT_MAX_RETRIES", def.DefaultMaxRetries),
		DefaultRetryDelay:       getEnvDuration("DEFAULT_RETRY_DELAY", def.DefaultRetryDelay),
		DefaultTaskTimeout:      getEnvDuration("DEFAULT_TASK_TIMEOUT", def.DefaultTaskTimeout),
		MaintenanceInterval:     getEnvDuration("MAINTENANCE_INTERVAL", def.MaintenanceInterval),
		MaintenanceErrorBackoff: getEnvDuration("MAINTENANCE_ERROR_BACKOFF", def.MaintenanceErrorBackoff),
		CleanupInterval:         getEnvDuration("CLEANUP_INTERVAL", def.CleanupInterval),
		CompletedRetention:      getEnvDuration("COMPLETED_RETENTION", def.CompletedRetention),
		FailedRetention:         getEnvDuration("FAILED_RETENTION", def.FailedRetention),
		ShutdownTimeout:         getEnvDuration("SHUTDOWN_TIMEOUT", def.ShutdownTimeout),
		Health: health.Thresholds{
			MaxActiveTasks:        getEnvInt("HEALTH_MAX_ACTIVE_TASKS", def.Health.MaxActiveTasks),
			MaxFailureRate:        getEnvFloat("HEALTH_MAX_FAILURE_RATE", def.Health.MaxFailureRate),
			MaxRetryingTasks:      getEnvInt("HEALTH_MAX_RETRYING_TASKS", def.Health.MaxRetryingTasks),
			MinSuccessRate:        getEnvFloat("HEALTH_MIN_SUCCESS_RATE", def.Health.MinSuccessRate),
			MinSampleSize:         getEnvInt("HEALTH_MIN_SAMPLE_SIZE", def.Health.MinSampleSize),
			MinSessionSampleSize:  getEnvInt("HEALTH_MIN_SESSION_SAMPLE_SIZE", def.Health.MinSessionSampleSize),
			MinSessionSuccessRate: getEnvFloat("HEALTH_MIN_SESSION_SUCCESS_RATE", def.Health.MinSessionSuccessRate),
			MaxAvgExecutionTime:   getEnvDuration("HEALTH_MAX_AVG_EXECUTION_TIME", def.Health.MaxAvgExecutionTime),
			MaxGoroutines:         getEnvInt("HEALTH_MAX_GOROUTINES", def.Health.MaxGoroutines),
		},
	}

	if raw := os.Getenv("HEALTH_MAX_MEMORY"); raw != "" {
		if mem, err := types.ParseMemory(raw); err == nil {
			cfg.Health.MaxMemoryBytes = mem
		}
	}

	return cfg
}

// Validate checks that the settings can run an engine.
func (c Config) Validate() error {
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("worker pool size must be positive, got %d", c.WorkerPoolSize)
	}
	if c.DefaultMaxRetries < 0 {
		return fmt.Errorf("default max retries must not be negative, got %d", c.DefaultMaxRetries)
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("maintenance interval must be positive, got %v", c.MaintenanceInterval)
	}
	if c.MaintenanceErrorBackoff <= 0 {
		return fmt.Errorf("maintenance error backoff must be positive, got %v", c.MaintenanceErrorBackoff)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive, got %v", c.CleanupInterval)
	}
	if c.CompletedRetention < 0 || c.FailedRetention < 0 {
		return fmt.Errorf("retention windows must not be negative")
	}
	if c.Health.MaxFailureRate < 0 || c.Health.MaxFailureRate > 1 {
		return fmt.Errorf("max failure rate must be within [0, 1], got %v", c.Health.MaxFailureRate)
	}
	if c.Health.MinSuccessRate < 0 || c.Health.MinSuccessRate > 1 {
		return fmt.Errorf("min success rate must be within [0, 1], got %v", c.Health.MinSuccessRate)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
