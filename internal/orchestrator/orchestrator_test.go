package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danpasecinic/harvester/internal/archive"
	"github.com/danpasecinic/harvester/internal/registry"
	"github.com/danpasecinic/harvester/internal/types"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WorkerPoolSize = 2
	cfg.DefaultRetryDelay = 0
	cfg.DefaultTaskTimeout = 0
	cfg.MaintenanceInterval = time.Hour
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func testRegistry(jobs map[string]types.JobFunc) *registry.Registry {
	r := registry.New()
	for name, fn := range jobs {
		fn := fn
		r.Register(
			registry.Definition{Name: name, Description: name + " job"},
			registry.Implementation{Tier: "basic", Build: func() (types.JobFunc, error) { return fn, nil }},
		)
	}
	return r
}

func newTestOrchestrator(t *testing.T, cfg Config, jobs map[string]types.JobFunc, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithResourceProbe(func() (types.ResourceUsage, bool) { return types.ResourceUsage{}, false })}, opts...)
	o, err := New(cfg, testRegistry(jobs), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(
		func() {
			_ = o.Shutdown(context.Background())
		},
	)
	return o
}

func succeed(found int) types.JobFunc {
	return func(ctx context.Context, config map[string]any) (*types.JobResult, error) {
		return &types.JobResult{ItemsFound: found, ItemsProcessed: found}, nil
	}
}

func waitSession(t *testing.T, o *Orchestrator, id string, want types.TaskStatus) types.SessionView {
	t.Helper()
	var view types.SessionView
	waitFor(
		t, 2*time.Second, func() bool {
			v, err := o.GetSessionStatus(id)
			if err != nil {
				t.Fatalf("GetSessionStatus() error = %v", err)
			}
			view = v
			return v.Status == want
		},
	)
	return view
}

func TestOrchestrator_FailTwiceThenSucceed(t *testing.T) {
	var calls int32
	flaky := func(ctx context.Context, config map[string]any) (*types.JobResult, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, errors.New("upstream timeout")
		}
		return &types.JobResult{ItemsFound: 42, ItemsProcessed: 40, PagesProcessed: 3}, nil
	}

	cfg := testConfig()
	cfg.DefaultMaxRetries = 3
	o := newTestOrchestrator(t, cfg, map[string]types.JobFunc{"tenders": flaky})

	sessionID, err := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	if err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}

	for cycle := 0; cycle < 3; cycle++ {
		waitFor(
			t, 2*time.Second, func() bool {
				m := o.GetMetrics().Tasks
				return m.ActiveTasks == 0
			},
		)
		if err := o.RunMaintenance(context.Background()); err != nil {
			t.Fatalf("RunMaintenance() cycle %d error = %v", cycle, err)
		}
	}

	view := waitSession(t, o, sessionID, types.TaskCompleted)
	if view.ItemsFound != 42 || view.ItemsProcessed != 40 || view.PagesProcessed != 3 {
		t.Errorf("session counters = %+v", view.Session)
	}
	if view.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", view.RetryCount)
	}

	m := o.GetMetrics().Tasks
	if m.TasksRetried != 2 || m.TasksCompleted != 1 || m.TasksFailed != 0 {
		t.Errorf("unexpected task metrics: %+v", m)
	}
}

func TestOrchestrator_StartJobUnknown(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil)

	id, err := o.StartJob("missing", "u1", nil, types.PriorityMedium)
	if id != "" || !errors.Is(err, registry.ErrJobNotFound) {
		t.Errorf("StartJob() = %q, %v; want ErrJobNotFound", id, err)
	}
}

func TestOrchestrator_StartAllRegisteredJobs(t *testing.T) {
	o := newTestOrchestrator(
		t, testConfig(), map[string]types.JobFunc{
			"tenders": succeed(1),
			"awards":  succeed(2),
		},
	)

	ids := o.StartAllRegisteredJobs("scheduler", map[string]any{"pages": 1}, types.PriorityLow)
	if len(ids) != 2 {
		t.Fatalf("StartAllRegisteredJobs() started %d, want 2", len(ids))
	}
	for _, id := range ids {
		waitSession(t, o, id, types.TaskCompleted)
	}

	summaries := o.ListSessions(types.SessionFilter{RequesterID: "scheduler"})
	if len(summaries) != 2 {
		t.Errorf("ListSessions() = %d, want 2", len(summaries))
	}

	report := o.GetMetrics()
	if report.Sessions.TotalSessions != 2 || report.Sessions.TotalItemsFound != 3 {
		t.Errorf("unexpected session metrics: %+v", report.Sessions)
	}
	if len(report.Jobs) != 2 || report.Pool.Workers != 2 {
		t.Errorf("unexpected report: jobs=%v pool=%+v", report.Jobs, report.Pool)
	}
}

func TestOrchestrator_CancelSession(t *testing.T) {
	started := make(chan struct{})
	blocking := func(ctx context.Context, config map[string]any) (*types.JobResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := newTestOrchestrator(t, testConfig(), map[string]types.JobFunc{"tenders": blocking})

	id, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	<-started

	if !o.CancelSession(id) {
		t.Fatal("CancelSession() = false")
	}
	if o.CancelSession(id) {
		t.Error("second CancelSession() should fail")
	}

	view, _ := o.GetSessionStatus(id)
	if view.Status != types.TaskCancelled {
		t.Errorf("Status = %s, want cancelled", view.Status)
	}
	if m := o.GetMetrics().Tasks; m.TasksCancelled != 1 {
		t.Errorf("TasksCancelled = %d, want 1", m.TasksCancelled)
	}
}

func TestOrchestrator_PruneArchivesSessions(t *testing.T) {
	store := archive.NewInMemoryStore()
	o := newTestOrchestrator(t, testConfig(), map[string]types.JobFunc{"tenders": succeed(5)}, WithArchive(store))

	id, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitSession(t, o, id, types.TaskCompleted)

	if result := o.Prune(context.Background(), false); result.SessionsRemoved != 0 || result.TasksRemoved != 0 {
		t.Errorf("Prune(false) removed fresh records: %+v", result)
	}

	time.Sleep(5 * time.Millisecond)
	result := o.Prune(context.Background(), true)
	if result.SessionsRemoved != 1 || result.TasksRemoved != 1 || result.Archived != 1 {
		t.Errorf("Prune(true) = %+v", result)
	}

	if _, err := o.GetSessionStatus(id); err == nil {
		t.Error("pruned session should be gone")
	}

	history, err := o.ListHistory(context.Background(), archive.Query{RequesterID: "u1"})
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].SessionID != id || history[0].ItemsFound != 5 {
		t.Errorf("unexpected history: %+v", history)
	}

	if m := o.GetMetrics().Tasks; m.TasksCompleted != 1 {
		t.Errorf("counters must survive pruning: %+v", m)
	}
}

func TestOrchestrator_MaintenanceLoop(t *testing.T) {
	var calls int32
	flaky := func(ctx context.Context, config map[string]any) (*types.JobResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("first attempt fails")
		}
		return &types.JobResult{ItemsFound: 1}, nil
	}

	cfg := testConfig()
	cfg.MaintenanceInterval = 10 * time.Millisecond
	o := newTestOrchestrator(t, cfg, map[string]types.JobFunc{"tenders": flaky})

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	id, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitSession(t, o, id, types.TaskCompleted)
}

func TestOrchestrator_Health(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), map[string]types.JobFunc{"tenders": succeed(1)})

	if h := o.GetHealthSummary(); h.Status != types.VerdictIdle {
		t.Errorf("Status = %s, want idle", h.Status)
	}

	id, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitSession(t, o, id, types.TaskCompleted)

	if h := o.GetHealthSummary(); h.Status != types.VerdictHealthy {
		t.Errorf("Status = %s, want healthy (issues %v)", h.Status, h.Issues)
	}

	report := o.GetHealthReport()
	if report.TaskPerformance.Completed != 1 || len(report.Recommendations) == 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestOrchestrator_ReloadJobs(t *testing.T) {
	ready := false
	r := registry.New()
	r.Register(
		registry.Definition{Name: "awards"},
		registry.Implementation{
			Tier: "enhanced",
			Build: func() (types.JobFunc, error) {
				if !ready {
					return nil, errors.New("runtime unavailable")
				}
				return succeed(1), nil
			},
		},
		registry.Implementation{Tier: "basic", Build: func() (types.JobFunc, error) { return succeed(1), nil }},
	)

	o, err := New(testConfig(), r)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = o.Shutdown(context.Background()) }()

	if tier := o.Jobs()[0].Tier; tier != "basic" {
		t.Fatalf("initial tier = %s, want basic", tier)
	}

	ready = true
	if tier := o.ReloadJobs()[0].Tier; tier != "enhanced" {
		t.Errorf("tier after reload = %s, want enhanced", tier)
	}
}

func TestOrchestrator_MetricsHandler(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), map[string]types.JobFunc{"tenders": succeed(1)})

	id, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitSession(t, o, id, types.TaskCompleted)
	o.GetHealthSummary()

	srv := httptest.NewServer(o.MetricsHandler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"harvester_tasks_created_total 1",
		"harvester_tasks_completed_total 1",
		`harvester_task_attempts_total{job_type="tenders",outcome="completed"} 1`,
		`harvester_health_status{status="healthy"} 1`,
		"harvester_pool_workers 2",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestOrchestrator_ShutdownCancelsRunning(t *testing.T) {
	started := make(chan struct{})
	blocking := func(ctx context.Context, config map[string]any) (*types.JobResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := newTestOrchestrator(t, testConfig(), map[string]types.JobFunc{"tenders": blocking})
	_ = o.Start(context.Background())

	id, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	<-started

	if err := o.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	view, _ := o.GetSessionStatus(id)
	if view.Status != types.TaskCancelled {
		t.Errorf("Status = %s, want cancelled", view.Status)
	}

	if _, err := o.StartJob("tenders", "u1", nil, types.PriorityMedium); !errors.Is(err, ErrStartFailed) {
		t.Errorf("StartJob() after shutdown error = %v, want ErrStartFailed", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler = "lottery"
	if _, err := New(cfg, registry.New()); err == nil {
		t.Error("expected error for unknown scheduler")
	}

	cfg = testConfig()
	cfg.WorkerPoolSize = 0
	if _, err := New(cfg, registry.New()); err == nil {
		t.Error("expected error for zero workers")
	}
}
