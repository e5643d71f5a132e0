package sessions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danpasecinic/harvester/internal/tasks"
	"github.com/danpasecinic/harvester/internal/types"
)

// ErrSessionNotFound is returned when a session is not found
var ErrSessionNotFound = errors.New("session not found")

// Metadata keys linking a task back to its session.
const (
	MetaSessionID   = "session_id"
	MetaJobType     = "job_type"
	MetaRequesterID = "requester_id"
)

// Registry resolves job types to job bodies.
type Registry interface {
	Resolve(name string) (types.JobFunc, error)
	DefaultConfig(name string, overrides map[string]any) map[string]any
}

// TaskStore is the subset of the task service a session needs.
type TaskStore interface {
	CreateTask(spec tasks.Spec) string
	Submit(taskID string) bool
	Cancel(taskID string) bool
	GetTask(taskID string) (types.Task, error)
}

// Archiver persists evicted sessions.
type Archiver interface {
	Save(ctx context.Context, sessions []types.ArchivedSession) error
}

// Defaults are applied to tasks whose config does not override them.
type Defaults struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithArchive sets the store evicted sessions are written to.
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithDefaults sets the task retry and timeout defaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type entry struct {
	session types.Session
	seq     uint64
}

// Service manages sessions. Session status is refreshed from the linked task
// whenever a session is read; once a session has absorbed a terminal task
// state it never changes again.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*entry
	seq      uint64

	registry Registry
	tasks    TaskStore
	archive  Archiver
	defaults Defaults
	now      func() time.Time
}

// NewService creates a session service.
func NewService(registry Registry, store TaskStore, opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]*entry),
		registry: registry,
		tasks:    store,
		defaults: Defaults{MaxRetries: 3, RetryDelay: 30 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession resolves the job type, creates its task and records a PENDING
// session linked to it.
func (s *Service) CreateSession(
	jobType, requesterID string, config map[string]any, priority types.Priority,
) (string, error) {
	fn, err := s.registry.Resolve(jobType)
	if err != nil {
		log.Printf("[sessions] cannot create session for job=%s: %v", jobType, err)
		return "", err
	}

	merged := s.registry.DefaultConfig(jobType, config)
	if priority == 0 {
		priority = types.PriorityMedium
	}

	sessionID := uuid.Must(uuid.NewV7()).String()
	taskID := s.tasks.CreateTask(
		tasks.Spec{
			Name:       jobType,
			Fn:         fn,
			Config:     merged,
			Priority:   priority,
			MaxRetries: types.IntOption(merged, "max_retries", s.defaults.MaxRetries),
			RetryDelay: types.DurationOption(merged, "retry_delay", s.defaults.RetryDelay),
			Timeout:    types.DurationOption(merged, "timeout", s.defaults.Timeout),
			Metadata: map[string]string{
				MetaSessionID:   sessionID,
				MetaJobType:     jobType,
				MetaRequesterID: requesterID,
			},
		},
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.sessions[sessionID] = &entry{
		seq: s.seq,
		session: types.Session{
			SessionID:   sessionID,
			TaskID:      taskID,
			JobType:     jobType,
			RequesterID: requesterID,
			Config:      merged,
			Priority:    priority,
			Status:      types.TaskPending,
			CreatedAt:   s.now(),
		},
	}

	log.Printf("[sessions] created session=%s job=%s requester=%s task=%s", sessionID, jobType, requesterID, taskID)
	return sessionID, nil
}

// Start submits the linked task and marks the session RUNNING.
func (s *Service) Start(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok || e.session.Status != types.TaskPending {
		return false
	}
	if !s.tasks.Submit(e.session.TaskID) {
		return false
	}

	now := s.now()
	e.session.Status = types.TaskRunning
	e.session.StartTime = &now

	log.Printf("[sessions] started session=%s", sessionID)
	return true
}

// GetStatus returns the session merged with the live state of its task.
func (s *Service) GetStatus(sessionID string) (types.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return types.SessionView{}, ErrSessionNotFound
	}

	task, err := s.tasks.GetTask(e.session.TaskID)
	if err != nil {
		return s.view(e, nil), nil
	}
	s.absorb(e, task)
	return s.view(e, &task), nil
}

// Cancel cancels the linked task and marks the session CANCELLED.
func (s *Service) Cancel(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok || e.session.Status.IsTerminal() {
		return false
	}
	return s.cancel(e)
}

func (s *Service) cancel(e *entry) bool {
	if !s.tasks.Cancel(e.session.TaskID) {
		s.sync(e)
		return false
	}

	now := s.now()
	e.session.Status = types.TaskCancelled
	e.session.EndTime = &now
	if e.session.ErrorMessage == "" {
		e.session.ErrorMessage = "cancelled"
	}

	log.Printf("[sessions] cancelled session=%s", e.session.SessionID)
	return true
}

// CancelActive cancels every session whose task is running or waiting for a
// retry. Returns the number cancelled.
func (s *Service) CancelActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for _, e := range s.sessions {
		s.sync(e)
		switch e.session.Status {
		case types.TaskRunning, types.TaskRetrying:
			if s.cancel(e) {
				cancelled++
			}
		}
	}
	return cancelled
}

// List returns session summaries newest first.
func (s *Service) List(filter types.SessionFilter) []types.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncAll()

	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		if filter.Matches(&e.session) {
			entries = append(entries, e)
		}
	}
	sort.Slice(
		entries, func(i, j int) bool {
			return entries[i].seq > entries[j].seq
		},
	)

	summaries := make([]types.SessionSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, summarize(&e.session))
	}
	return summaries
}

// Metrics aggregates the session map.
func (s *Service) Metrics() types.SessionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncAll()

	m := types.SessionMetrics{
		TotalSessions: len(s.sessions),
		ByStatus:      make(map[types.TaskStatus]int),
		ByJobType:     make(map[string]int),
	}
	for _, e := range s.sessions {
		m.ByStatus[e.session.Status]++
		m.ByJobType[e.session.JobType]++
		m.TotalItemsFound += e.session.ItemsFound
		m.TotalItemsProcessed += e.session.ItemsProcessed
	}
	if m.TotalItemsFound > 0 {
		m.OverallSuccessRate = float64(m.TotalItemsProcessed) / float64(m.TotalItemsFound)
	}
	return m
}

// CleanupOlderThan evicts terminal sessions that ended more than age ago and
// writes them to the archive. When statuses are given only sessions in those
// states are considered. Eviction happens even when archiving fails; the
// archive error is returned with the eviction count.
func (s *Service) CleanupOlderThan(
	ctx context.Context, age time.Duration, statuses ...types.TaskStatus,
) (int, error) {
	s.mu.Lock()
	s.syncAll()

	now := s.now()
	cutoff := now.Add(-age)

	var evicted []types.ArchivedSession
	for id, e := range s.sessions {
		sess := e.session
		if !sess.Status.IsTerminal() || !matchesStatus(sess.Status, statuses) {
			continue
		}
		if sess.EndTime == nil || !sess.EndTime.Before(cutoff) {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, types.ArchivedSession{Session: sess, ArchivedAt: now})
	}
	s.mu.Unlock()

	if len(evicted) == 0 {
		return 0, nil
	}

	log.Printf("[sessions] cleaned up %d sessions", len(evicted))

	if s.archive == nil {
		return len(evicted), nil
	}
	if err := s.archive.Save(ctx, evicted); err != nil {
		log.Printf("[sessions] failed to archive %d sessions: %v", len(evicted), err)
		return len(evicted), fmt.Errorf("failed to archive sessions: %w", err)
	}
	return len(evicted), nil
}

func (s *Service) syncAll() {
	for _, e := range s.sessions {
		s.sync(e)
	}
}

func (s *Service) sync(e *entry) {
	if e.session.Status.IsTerminal() {
		return
	}
	task, err := s.tasks.GetTask(e.session.TaskID)
	if err != nil {
		return
	}
	s.absorb(e, task)
}

// absorb copies the task state into the session. Terminal sessions are left
// untouched so repeated reads return the same snapshot.
func (s *Service) absorb(e *entry, task types.Task) {
	sess := &e.session
	if sess.Status.IsTerminal() {
		return
	}

	sess.Status = task.Status
	if sess.StartTime == nil && task.LastAttempt != nil {
		start := *task.LastAttempt
		sess.StartTime = &start
	}
	if task.LastError != "" {
		sess.ErrorMessage = task.LastError
	}
	if task.Progress != nil {
		sess.ItemsFound = task.Progress.ItemsFound
		sess.ItemsProcessed = task.Progress.ItemsProcessed
		sess.PagesProcessed = task.Progress.PagesProcessed
	}

	if !task.Status.IsTerminal() {
		return
	}

	if task.Result != nil && task.Result.Value != nil {
		sess.ItemsFound = task.Result.Value.ItemsFound
		sess.ItemsProcessed = task.Result.Value.ItemsProcessed
		sess.PagesProcessed = task.Result.Value.PagesProcessed
	}
	if task.Status == types.TaskCompleted {
		sess.ErrorMessage = ""
	}

	end := s.now()
	if task.FinishedAt != nil {
		end = *task.FinishedAt
	}
	sess.EndTime = &end

	log.Printf("[sessions] session=%s finished status=%s items=%d", sess.SessionID, sess.Status, sess.ItemsFound)
}

func (s *Service) view(e *entry, task *types.Task) types.SessionView {
	sess := e.session
	v := types.SessionView{
		Session:     sess,
		Duration:    sess.Duration(s.now()),
		SuccessRate: sess.SuccessRate(),
		Progress:    sessionProgress(&sess, task),
	}
	if task != nil {
		v.TaskStatus = task.Status
		v.RetryCount = task.RetryCount
		v.MaxRetries = task.MaxRetries
		v.NextRetry = task.NextRetry
		if task.Result != nil {
			v.ExecutionTime = task.Result.ExecutionTime
		}
	}
	return v
}

// sessionProgress is 0 while pending, 100 once completed, and the last
// reported percentage otherwise.
func sessionProgress(sess *types.Session, task *types.Task) float64 {
	switch sess.Status {
	case types.TaskPending:
		return 0
	case types.TaskCompleted:
		return 100
	}
	if task != nil && task.Progress != nil {
		return task.Progress.Percent
	}
	return 0
}

func summarize(sess *types.Session) types.SessionSummary {
	return types.SessionSummary{
		SessionID:      sess.SessionID,
		JobType:        sess.JobType,
		RequesterID:    sess.RequesterID,
		Status:         sess.Status,
		ItemsFound:     sess.ItemsFound,
		ItemsProcessed: sess.ItemsProcessed,
		CreatedAt:      sess.CreatedAt,
		StartTime:      sess.StartTime,
		EndTime:        sess.EndTime,
	}
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
