package tasks

import (
	"log"
	"sort"
	"time"

	"github.com/danpasecinic/harvester/internal/types"
)

// PromoteRetries moves RETRYING tasks whose retry time has passed back to
// PENDING and returns their IDs in creation order.
func (s *Service) PromoteRetries(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*record
	for _, rec := range s.tasks {
		t := &rec.task
		if t.Status != types.TaskRetrying || t.NextRetry == nil {
			continue
		}
		if now.Before(*t.NextRetry) {
			continue
		}
		t.Status = types.TaskPending
		t.NextRetry = nil
		due = append(due, rec)
	}

	sort.Slice(
		due, func(i, j int) bool {
			return due[i].seq < due[j].seq
		},
	)

	ids := make([]string, 0, len(due))
	for _, rec := range due {
		ids = append(ids, rec.task.TaskID)
	}
	if len(ids) > 0 {
		log.Printf("[tasks] promoted %d tasks for retry", len(ids))
	}
	return ids
}

// CleanupOlderThan removes terminal tasks that finished more than age ago.
// When statuses are given only tasks in those states are considered.
// Returns the removed IDs.
func (s *Service) CleanupOlderThan(age time.Duration, statuses ...types.TaskStatus) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-age)

	var removed []string
	for id, rec := range s.tasks {
		t := &rec.task
		if !t.Status.IsTerminal() || !matchesStatus(t.Status, statuses) {
			continue
		}
		finished := finishedAt(t)
		if finished == nil || !finished.Before(cutoff) {
			continue
		}
		if t.Status == types.TaskCompleted {
			s.cleared[id] = struct{}{}
		}
		delete(s.tasks, id)
		removed = append(removed, id)
	}

	sort.Strings(removed)
	if len(removed) > 0 {
		log.Printf("[tasks] cleaned up %d tasks", len(removed))
	}
	return removed
}

func finishedAt(t *types.Task) *time.Time {
	if t.Result != nil {
		return &t.Result.FinishedAt
	}
	return t.FinishedAt
}

// Metrics returns the process-wide counters and the current gauges.
func (s *Service) Metrics() types.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := types.Metrics{
		TasksCreated:         s.created,
		TasksCompleted:       s.completed,
		TasksFailed:          s.failed,
		TasksRetried:         s.retried,
		TasksCancelled:       s.cancelled,
		AverageExecutionTime: time.Duration(s.avgExec * float64(time.Second)),
	}
	for _, rec := range s.tasks {
		switch rec.task.Status {
		case types.TaskRunning:
			m.ActiveTasks++
		case types.TaskPending:
			m.PendingTasks++
		case types.TaskRetrying:
			m.RetryingTasks++
		}
	}
	return m
}

// Running returns the IDs of tasks with an attempt in flight.
func (s *Service) Running() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
