package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danpasecinic/harvester/internal/archive"
	"github.com/danpasecinic/harvester/internal/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedStore is an in-memory archive whose Save first consults save with
// the 1-based call number.
type scriptedStore struct {
	*archive.InMemoryStore
	calls atomic.Int32
	save  func(call int32) error
}

func newScriptedStore(save func(call int32) error) *scriptedStore {
	return &scriptedStore{InMemoryStore: archive.NewInMemoryStore(), save: save}
}

func (s *scriptedStore) Save(ctx context.Context, sessions []types.ArchivedSession) error {
	if err := s.save(s.calls.Add(1)); err != nil {
		return err
	}
	return s.InMemoryStore.Save(ctx, sessions)
}

func archived(t *testing.T, o *Orchestrator, sessionID string) bool {
	t.Helper()
	history, err := o.ListHistory(context.Background(), archive.Query{})
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	for _, h := range history {
		if h.SessionID == sessionID {
			return true
		}
	}
	return false
}

func TestRunMaintenance_CleanupOncePerInterval(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	cfg := testConfig()
	cfg.CleanupInterval = time.Hour
	cfg.CompletedRetention = 10 * time.Minute
	o := newTestOrchestrator(
		t, cfg, map[string]types.JobFunc{"tenders": succeed(3)},
		WithClock(clock.Now),
	)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	id, err := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	if err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	view := waitSession(t, o, id, types.TaskCompleted)

	// Past retention but inside the cleanup interval.
	clock.Advance(30 * time.Minute)
	if err := o.RunMaintenance(context.Background()); err != nil {
		t.Fatalf("RunMaintenance() error = %v", err)
	}
	if _, err := o.GetSessionStatus(id); err != nil {
		t.Fatalf("session evicted before the cleanup interval elapsed: %v", err)
	}
	if _, ok := o.tasks.GetStatus(view.TaskID); !ok {
		t.Fatal("task removed before the cleanup interval elapsed")
	}

	clock.Advance(31 * time.Minute)
	if err := o.RunMaintenance(context.Background()); err != nil {
		t.Fatalf("RunMaintenance() error = %v", err)
	}
	if _, err := o.GetSessionStatus(id); err == nil {
		t.Error("session should be evicted once the cleanup interval elapsed")
	}
	if _, ok := o.tasks.GetStatus(view.TaskID); ok {
		t.Error("task should be removed once the cleanup interval elapsed")
	}
	if !archived(t, o, id) {
		t.Error("evicted session missing from history")
	}

	// The next pass is not due again until another interval passes.
	id2, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitSession(t, o, id2, types.TaskCompleted)
	clock.Advance(30 * time.Minute)
	if err := o.RunMaintenance(context.Background()); err != nil {
		t.Fatalf("RunMaintenance() error = %v", err)
	}
	if _, err := o.GetSessionStatus(id2); err != nil {
		t.Errorf("second session evicted early: %v", err)
	}
}

func TestMaintenanceLoop_RecoversFromPanic(t *testing.T) {
	store := newScriptedStore(
		func(call int32) error {
			if call == 1 {
				panic("archive exploded")
			}
			return nil
		},
	)

	cfg := testConfig()
	cfg.MaintenanceInterval = 10 * time.Millisecond
	cfg.MaintenanceErrorBackoff = 10 * time.Millisecond
	cfg.CleanupInterval = time.Nanosecond
	cfg.CompletedRetention = 0
	o := newTestOrchestrator(t, cfg, map[string]types.JobFunc{"tenders": succeed(1)}, WithArchive(store))

	first, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitSession(t, o, first, types.TaskCompleted)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return store.calls.Load() >= 1 })

	second, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitFor(t, 2*time.Second, func() bool { return archived(t, o, second) })

	if archived(t, o, first) {
		t.Error("session from the panicking pass should not be archived")
	}
}

func TestMaintenanceLoop_BacksOffAfterError(t *testing.T) {
	store := newScriptedStore(
		func(call int32) error {
			if call == 1 {
				return errors.New("database unavailable")
			}
			return nil
		},
	)

	cfg := testConfig()
	cfg.MaintenanceInterval = 10 * time.Millisecond
	cfg.MaintenanceErrorBackoff = time.Hour
	cfg.CleanupInterval = time.Nanosecond
	cfg.CompletedRetention = 0
	o := newTestOrchestrator(t, cfg, map[string]types.JobFunc{"tenders": succeed(1)}, WithArchive(store))

	first, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitSession(t, o, first, types.TaskCompleted)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return store.calls.Load() >= 1 })

	second, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	waitSession(t, o, second, types.TaskCompleted)

	time.Sleep(100 * time.Millisecond)
	if _, err := o.GetSessionStatus(second); err != nil {
		t.Errorf("maintenance ran during the error backoff: %v", err)
	}
	if calls := store.calls.Load(); calls != 1 {
		t.Errorf("archive saved %d times, want 1", calls)
	}
}

func TestCleanup_ArchivedCountsSuccessfulBatches(t *testing.T) {
	store := newScriptedStore(
		func(call int32) error {
			if call == 1 {
				return errors.New("database unavailable")
			}
			return nil
		},
	)

	failing := func(ctx context.Context, config map[string]any) (*types.JobResult, error) {
		return nil, errors.New("boom")
	}
	o := newTestOrchestrator(
		t, testConfig(),
		map[string]types.JobFunc{"tenders": succeed(1), "awards": failing},
		WithArchive(store),
	)

	done, _ := o.StartJob("tenders", "u1", nil, types.PriorityMedium)
	failed, _ := o.StartJob("awards", "u1", map[string]any{"max_retries": 0}, types.PriorityMedium)
	waitSession(t, o, done, types.TaskCompleted)
	waitSession(t, o, failed, types.TaskFailed)

	time.Sleep(5 * time.Millisecond)
	result := o.Prune(context.Background(), true)
	if result.SessionsRemoved != 2 || result.TasksRemoved != 2 {
		t.Errorf("Prune(true) = %+v, want 2 sessions and 2 tasks removed", result)
	}
	if result.Archived != 1 {
		t.Errorf("Archived = %d, want 1 (only the failed-retention batch was written)", result.Archived)
	}
	if archived(t, o, done) || !archived(t, o, failed) {
		t.Error("history should hold only the session from the successful batch")
	}
}
