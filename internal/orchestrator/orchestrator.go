package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/danpasecinic/harvester/internal/archive"
	"github.com/danpasecinic/harvester/internal/health"
	"github.com/danpasecinic/harvester/internal/pool"
	"github.com/danpasecinic/harvester/internal/registry"
	"github.com/danpasecinic/harvester/internal/scheduler"
	"github.com/danpasecinic/harvester/internal/sessions"
	"github.com/danpasecinic/harvester/internal/tasks"
	"github.com/danpasecinic/harvester/internal/types"
)

var (
	// ErrStartFailed is returned when a session was created but could not be submitted
	ErrStartFailed = errors.New("failed to start session")
	// ErrAlreadyStarted is returned when the maintenance loop is already running
	ErrAlreadyStarted = errors.New("orchestrator already started")
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithArchive sets the store evicted sessions are written to.
func WithArchive(store archive.Store) Option {
	return func(o *Orchestrator) { o.archive = store }
}

// WithResourceProbe sets the probe used by the resource health checks.
func WithResourceProbe(probe health.ResourceProbe) Option {
	return func(o *Orchestrator) { o.probe = probe }
}

// WithClock overrides the time source of the engine.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator owns the registry, the worker pool and the task, session and
// health services, and runs the maintenance loop.
type Orchestrator struct {
	cfg      Config
	registry *registry.Registry
	pool     *pool.Pool
	tasks    *tasks.Service
	sessions *sessions.Service
	health   *health.Service
	archive  archive.Store
	metrics  *Metrics
	probe    health.ResourceProbe
	now      func() time.Time

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	lastCleanup time.Time
}

// New builds an engine around reg and loads its job implementations.
func New(cfg Config, reg *registry.Registry, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	backlog, err := scheduler.New(cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:      cfg,
		registry: reg,
		archive:  archive.NewInMemoryStore(),
		metrics:  NewMetrics(),
		probe:    health.RuntimeProbe,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.pool = pool.New(cfg.WorkerPoolSize, backlog)
	o.tasks = tasks.NewService(o.pool, tasks.WithObserver(o.metrics), tasks.WithClock(o.now))
	o.sessions = sessions.NewService(
		reg, o.tasks,
		sessions.WithArchive(o.archive),
		sessions.WithClock(o.now),
		sessions.WithDefaults(
			sessions.Defaults{
				MaxRetries: cfg.DefaultMaxRetries,
				RetryDelay: cfg.DefaultRetryDelay,
				Timeout:    cfg.DefaultTaskTimeout,
			},
		),
	)
	o.health = health.NewService(
		o.tasks, o.sessions, cfg.Health,
		health.WithProbe(o.probe),
		health.WithClock(o.now),
	)
	o.metrics.registerSources(o.tasks.Metrics, o.pool.Stats)

	loaded := reg.Load()
	log.Printf(
		"[orchestrator] initialized workers=%d scheduler=%s jobs=%d",
		cfg.WorkerPoolSize, cfg.Scheduler, loaded,
	)

	return o, nil
}

// StartJob creates a session for jobType and submits it.
func (o *Orchestrator) StartJob(
	jobType, requesterID string, config map[string]any, priority types.Priority,
) (string, error) {
	sessionID, err := o.sessions.CreateSession(jobType, requesterID, config, priority)
	if err != nil {
		return "", err
	}

	if !o.sessions.Start(sessionID) {
		o.sessions.Cancel(sessionID)
		return "", fmt.Errorf("%w: %s", ErrStartFailed, sessionID)
	}

	return sessionID, nil
}

// StartAllRegisteredJobs starts one session per available job type with the
// shared config. Job types that fail to start are logged and skipped.
func (o *Orchestrator) StartAllRegisteredJobs(
	requesterID string, config map[string]any, priority types.Priority,
) []string {
	var started []string
	for _, jobType := range o.registry.Available() {
		sessionID, err := o.StartJob(jobType, requesterID, config, priority)
		if err != nil {
			log.Printf("[orchestrator] failed to start job=%s: %v", jobType, err)
			continue
		}
		started = append(started, sessionID)
	}
	return started
}

// GetSessionStatus returns the merged session view.
func (o *Orchestrator) GetSessionStatus(sessionID string) (types.SessionView, error) {
	return o.sessions.GetStatus(sessionID)
}

// CancelSession cancels a session and its task.
func (o *Orchestrator) CancelSession(sessionID string) bool {
	return o.sessions.Cancel(sessionID)
}

// ListSessions returns session summaries newest first.
func (o *Orchestrator) ListSessions(filter types.SessionFilter) []types.SessionSummary {
	return o.sessions.List(filter)
}

// GetHealthSummary runs the health checks.
func (o *Orchestrator) GetHealthSummary() types.HealthStatus {
	status := o.health.CheckHealth()
	o.metrics.observeHealth(status)
	return status
}

// GetHealthReport runs the health checks and adds recommendations.
func (o *Orchestrator) GetHealthReport() types.HealthReport {
	report := o.health.GetReport()
	o.metrics.observeHealth(report.Health)
	return report
}

// GetMetrics merges task, session and pool metrics.
func (o *Orchestrator) GetMetrics() types.MetricsReport {
	return types.MetricsReport{
		Tasks:     o.tasks.Metrics(),
		Sessions:  o.sessions.Metrics(),
		Pool:      o.pool.Stats(),
		Jobs:      o.registry.Jobs(),
		Timestamp: o.now(),
	}
}

// Jobs lists the registered job types.
func (o *Orchestrator) Jobs() []types.JobInfo {
	return o.registry.Jobs()
}

// ReloadJobs rebinds job implementations, picking up newly available tiers.
func (o *Orchestrator) ReloadJobs() []types.JobInfo {
	loaded := o.registry.Load()
	log.Printf("[orchestrator] reloaded jobs, %d available", loaded)
	return o.registry.Jobs()
}

// ListHistory reads archived sessions.
func (o *Orchestrator) ListHistory(ctx context.Context, q archive.Query) ([]types.ArchivedSession, error) {
	return o.archive.List(ctx, q)
}

// Prune runs both cleanup routines now. With all set, every terminal task and
// session is removed regardless of age.
func (o *Orchestrator) Prune(ctx context.Context, all bool) types.CleanupResult {
	completed, failed := o.cfg.CompletedRetention, o.cfg.FailedRetention
	if all {
		completed, failed = 0, 0
	}
	result, _ := o.cleanup(ctx, completed, failed)
	return result
}

// MetricsHandler serves Prometheus metrics.
func (o *Orchestrator) MetricsHandler() http.Handler {
	return o.metrics.Handler()
}

// Start launches the maintenance loop. It stops when ctx is cancelled or on
// Shutdown.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done != nil {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.lastCleanup = o.now()

	go o.loop(loopCtx, o.done)

	log.Printf("[orchestrator] maintenance loop started interval=%v", o.cfg.MaintenanceInterval)
	return nil
}

// Shutdown stops the maintenance loop, cancels active sessions and drains the
// worker pool, waiting at most ShutdownTimeout or until ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	cancelled := o.sessions.CancelActive()
	log.Printf("[orchestrator] shutting down, cancelled %d active sessions", cancelled)

	drainCtx, drainCancel := context.WithTimeout(ctx, o.cfg.ShutdownTimeout)
	defer drainCancel()

	if err := o.pool.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("worker pool did not drain: %w", err)
	}

	log.Println("[orchestrator] stopped")
	return nil
}
