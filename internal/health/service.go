package health

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/danpasecinic/harvester/internal/types"
)

// Check names reported in HealthStatus.Checks.
const (
	CheckActiveTasks   = "active_tasks"
	CheckFailureRate   = "failure_rate"
	CheckRetryingTasks = "retrying_tasks"
	CheckSuccessRate   = "success_rate"
	CheckSessions      = "sessions"
	CheckSessionsExist = "session_existence"
	CheckMemory        = "memory"
	CheckGoroutines    = "goroutines"
	CheckExecutionTime = "execution_time"
	CheckProgress      = "progress"
)

// TaskMetrics provides task counters.
type TaskMetrics interface {
	Metrics() types.Metrics
}

// SessionMetrics provides session aggregates.
type SessionMetrics interface {
	Metrics() types.SessionMetrics
}

// ResourceProbe samples process resources. ok is false when the host cannot
// provide a sample.
type ResourceProbe func() (usage types.ResourceUsage, ok bool)

// RuntimeProbe samples the Go runtime.
func RuntimeProbe() (types.ResourceUsage, bool) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return types.ResourceUsage{
		MemoryBytes: int64(ms.Sys),
		Goroutines:  runtime.NumGoroutine(),
	}, true
}

// Thresholds configure the health checks. Task rate checks are skipped (and
// pass) until MinSampleSize tasks were created and at least one finished;
// session rates wait for MinSessionSampleSize finished sessions.
type Thresholds struct {
	MaxActiveTasks        int
	MaxFailureRate        float64
	MaxRetryingTasks      int
	MinSuccessRate        float64
	MinSampleSize         int
	MinSessionSampleSize  int
	MinSessionSuccessRate float64
	MaxAvgExecutionTime   time.Duration
	// MaxMemoryBytes of 0 disables the memory check.
	MaxMemoryBytes int64
	// MaxGoroutines of 0 disables the goroutine check.
	MaxGoroutines int
}

// DefaultThresholds returns the default health thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxActiveTasks:        10,
		MaxFailureRate:        0.5,
		MaxRetryingTasks:      5,
		MinSuccessRate:        0.5,
		MinSampleSize:         5,
		MinSessionSampleSize:  10,
		MinSessionSuccessRate: 0.5,
		MaxAvgExecutionTime:   10 * time.Minute,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithProbe sets the resource probe.
func WithProbe(p ResourceProbe) Option {
	return func(s *Service) { s.probe = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service evaluates health from task and session metrics.
type Service struct {
	tasks      TaskMetrics
	sessions   SessionMetrics
	thresholds Thresholds
	probe      ResourceProbe
	now        func() time.Time

	mu   sync.RWMutex
	last *types.HealthStatus
}

// NewService creates a health service.
func NewService(tasks TaskMetrics, sessions SessionMetrics, thresholds Thresholds, opts ...Option) *Service {
	s := &Service{
		tasks:      tasks,
		sessions:   sessions,
		thresholds: thresholds,
		probe:      RuntimeProbe,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckHealth runs every check and derives the verdict.
func (s *Service) CheckHealth() types.HealthStatus {
	m := s.tasks.Metrics()
	sm := s.sessions.Metrics()
	th := s.thresholds

	status := types.HealthStatus{
		Checks:    make(map[string]bool),
		Issues:    []string{},
		Metrics:   m,
		Sessions:  sm,
		Timestamp: s.now(),
	}
	record := func(name string, ok bool, format string, args ...any) {
		status.Checks[name] = ok
		if !ok {
			status.Issues = append(status.Issues, fmt.Sprintf(format, args...))
		}
	}

	record(
		CheckActiveTasks, m.ActiveTasks <= th.MaxActiveTasks,
		"too many active tasks: %d (max %d)", m.ActiveTasks, th.MaxActiveTasks,
	)

	sampled := m.TasksCreated >= int64(th.MinSampleSize) && m.Finished() > 0

	record(
		CheckFailureRate, !sampled || m.FailureRate() <= th.MaxFailureRate,
		"high failure rate: %.1f%% (max %.1f%%)", m.FailureRate()*100, th.MaxFailureRate*100,
	)

	record(
		CheckRetryingTasks, m.RetryingTasks <= th.MaxRetryingTasks,
		"too many retrying tasks: %d (max %d)", m.RetryingTasks, th.MaxRetryingTasks,
	)

	record(
		CheckSuccessRate, !sampled || m.SuccessRate() >= th.MinSuccessRate,
		"low success rate: %.1f%% (min %.1f%%)", m.SuccessRate()*100, th.MinSuccessRate*100,
	)

	live := m.ActiveTasks + m.PendingTasks + m.RetryingTasks
	record(
		CheckSessionsExist, live == 0 || sm.TotalSessions > 0,
		"%d live tasks but no sessions", live,
	)

	sessionsOK := sm.FinishedSessions() < th.MinSessionSampleSize ||
		sm.CompletionRate() >= th.MinSessionSuccessRate
	record(
		CheckSessions, sessionsOK,
		"low session completion rate: %.1f%% (min %.1f%%)",
		sm.CompletionRate()*100, th.MinSessionSuccessRate*100,
	)

	if usage, ok := s.sample(); ok {
		if th.MaxMemoryBytes > 0 {
			record(
				CheckMemory, usage.MemoryBytes <= th.MaxMemoryBytes,
				"high memory usage: %s (max %s)",
				types.FormatMemory(usage.MemoryBytes), types.FormatMemory(th.MaxMemoryBytes),
			)
		}
		if th.MaxGoroutines > 0 {
			record(
				CheckGoroutines, usage.Goroutines <= th.MaxGoroutines,
				"too many goroutines: %d (max %d)", usage.Goroutines, th.MaxGoroutines,
			)
		}
	}

	record(
		CheckExecutionTime, th.MaxAvgExecutionTime <= 0 || m.AverageExecutionTime <= th.MaxAvgExecutionTime,
		"slow task execution: average %v (max %v)",
		m.AverageExecutionTime.Round(time.Millisecond), th.MaxAvgExecutionTime,
	)

	record(
		CheckProgress, m.TasksCreated < int64(th.MinSampleSize) || m.TasksCompleted > 0,
		"no task has completed out of %d created", m.TasksCreated,
	)

	status.Status = types.DeriveVerdict(status.FailedChecks(), m.TasksCreated, sm.TotalSessions)

	s.mu.Lock()
	s.last = &status
	s.mu.Unlock()

	if status.Status == types.VerdictDegraded || status.Status == types.VerdictUnhealthy {
		log.Printf("[health] status=%s issues=%v", status.Status, status.Issues)
	}

	return status
}

// sample runs the probe, treating a panicking probe as unavailable.
func (s *Service) sample() (usage types.ResourceUsage, ok bool) {
	if s.probe == nil {
		return types.ResourceUsage{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[health] resource probe failed: %v", r)
			ok = false
		}
	}()
	return s.probe()
}

// Last returns the most recent health evaluation.
func (s *Service) Last() (types.HealthStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.last == nil {
		return types.HealthStatus{}, false
	}
	return *s.last, true
}
