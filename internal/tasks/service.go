package tasks

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danpasecinic/harvester/internal/pool"
	"github.com/danpasecinic/harvester/internal/types"
)

// ErrTaskNotFound is returned when a task is not found in the store
var ErrTaskNotFound = errors.New("task not found")

// Spec describes a task to create.
type Spec struct {
	Name         string
	Fn           types.JobFunc
	Config       map[string]any
	Priority     types.Priority
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration
	Dependencies []string
	Metadata     map[string]string
}

// Observer is notified after every execution attempt. The task snapshot
// carries the status the attempt produced.
type Observer interface {
	ObserveAttempt(task types.Task, elapsed time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithObserver registers an execution observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type record struct {
	task types.Task
	fn   types.JobFunc
	seq  uint64
}

// Service owns every task record, dispatches submitted tasks to the worker
// pool and keeps the process-wide task counters.
// Service is safe for concurrent use.
type Service struct {
	mu   sync.RWMutex
	pool *pool.Pool

	tasks map[string]*record
	// running maps a task ID to the generation of its in-flight attempt.
	running map[string]uint64
	// cleared holds completed tasks removed by cleanup so that dependents
	// can still be submitted.
	cleared map[string]struct{}
	seq     uint64
	gen     uint64

	created   int64
	completed int64
	failed    int64
	retried   int64
	cancelled int64
	// avgExec is the running mean of successful attempt durations in seconds.
	avgExec float64

	observer Observer
	now      func() time.Time
}

// NewService creates a task service dispatching to p.
func NewService(p *pool.Pool, opts ...Option) *Service {
	s := &Service{
		pool:    p,
		tasks:   make(map[string]*record),
		running: make(map[string]uint64),
		cleared: make(map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask stores a new PENDING task and returns its ID.
func (s *Service) CreateTask(spec Spec) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.Must(uuid.NewV7()).String()
	s.seq++

	priority := spec.Priority
	if priority == 0 {
		priority = types.PriorityMedium
	}
	maxRetries := spec.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	s.tasks[id] = &record{
		fn:  spec.Fn,
		seq: s.seq,
		task: types.Task{
			TaskID:       id,
			Name:         spec.Name,
			Metadata:     copyStrings(spec.Metadata),
			Config:       copyConfig(spec.Config),
			Priority:     priority,
			Dependencies: append([]string(nil), spec.Dependencies...),
			MaxRetries:   maxRetries,
			RetryDelay:   spec.RetryDelay,
			Timeout:      spec.Timeout,
			Status:       types.TaskPending,
			CreatedAt:    s.now(),
		},
	}
	s.created++

	log.Printf("[tasks] created task=%s name=%s priority=%s", id, spec.Name, priority)
	return id
}

// Submit hands a PENDING task to the worker pool and marks it RUNNING.
// Returns false if the task is unknown, already running, not pending, has an
// unfinished dependency, or the pool refused it. A dependency that completed
// and was later cleaned up still counts as completed.
func (s *Service) Submit(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		log.Printf("[tasks] submit refused task=%s: not found", taskID)
		return false
	}
	if _, busy := s.running[taskID]; busy || rec.task.Status != types.TaskPending {
		log.Printf("[tasks] submit refused task=%s: status=%s", taskID, rec.task.Status)
		return false
	}
	if rec.fn == nil {
		log.Printf("[tasks] submit refused task=%s: no job body", taskID)
		return false
	}
	for _, dep := range rec.task.Dependencies {
		if !s.completedLocked(dep) {
			log.Printf("[tasks] submit refused task=%s: dependency %s not completed", taskID, dep)
			return false
		}
	}

	s.gen++
	gen := s.gen
	err := s.pool.Submit(
		pool.Job{
			ID:       jobKey(taskID, gen),
			Priority: rec.task.Priority,
			Run:      s.attempt(taskID, gen),
		},
	)
	if err != nil {
		log.Printf("[tasks] submit refused task=%s: %v", taskID, err)
		return false
	}

	now := s.now()
	s.running[taskID] = gen
	rec.task.Status = types.TaskRunning
	rec.task.LastAttempt = &now
	rec.task.Progress = nil

	return true
}

func (s *Service) completedLocked(taskID string) bool {
	if d, ok := s.tasks[taskID]; ok {
		return d.task.Status == types.TaskCompleted
	}
	_, ok := s.cleared[taskID]
	return ok
}

// Cancel moves a non-terminal task to CANCELLED. A queued attempt is removed
// from the pool backlog; a running attempt has its context cancelled, but the
// job body may keep running until it notices.
func (s *Service) Cancel(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return false
	}

	switch rec.task.Status {
	case types.TaskPending, types.TaskRetrying:
	case types.TaskRunning:
		if gen, ok := s.running[taskID]; ok {
			key := jobKey(taskID, gen)
			if s.pool.Dequeue(key) {
				delete(s.running, taskID)
			} else {
				s.pool.Interrupt(key)
			}
		}
	default:
		return false
	}

	now := s.now()
	rec.task.Status = types.TaskCancelled
	rec.task.FinishedAt = &now
	rec.task.NextRetry = nil
	s.cancelled++

	log.Printf("[tasks] cancelled task=%s", taskID)
	return true
}

// GetTask returns a snapshot of a task.
func (s *Service) GetTask(taskID string) (types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return types.Task{}, ErrTaskNotFound
	}
	return snapshot(rec), nil
}

// GetStatus returns the status of a task.
func (s *Service) GetStatus(taskID string) (types.TaskStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return "", false
	}
	return rec.task.Status, true
}

// GetResult returns the final result of a COMPLETED or FAILED task.
func (s *Service) GetResult(taskID string) (types.TaskResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[taskID]
	if !ok || rec.task.Result == nil {
		return types.TaskResult{}, false
	}
	return *rec.task.Result, true
}

// List returns tasks newest first, optionally restricted to the given statuses.
func (s *Service) List(statuses ...types.TaskStatus) []types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*record, 0, len(s.tasks))
	for _, rec := range s.tasks {
		if matchesStatus(rec.task.Status, statuses) {
			records = append(records, rec)
		}
	}
	sort.Slice(
		records, func(i, j int) bool {
			return records[i].seq > records[j].seq
		},
	)

	tasks := make([]types.Task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, snapshot(rec))
	}
	return tasks
}

func matchesStatus(status types.TaskStatus, statuses []types.TaskStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func jobKey(taskID string, gen uint64) string {
	return fmt.Sprintf("%s#%d", taskID, gen)
}

func snapshot(rec *record) types.Task {
	t := rec.task
	t.Metadata = copyStrings(t.Metadata)
	t.Config = copyConfig(t.Config)
	t.Dependencies = append([]string(nil), t.Dependencies...)
	return t
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyConfig(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
