package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/danpasecinic/harvester/internal/types"
)

// attempt returns the pool body for one execution attempt of a task.
func (s *Service) attempt(taskID string, gen uint64) func(context.Context) {
	return func(ctx context.Context) {
		defer s.release(taskID, gen)

		s.mu.RLock()
		rec, ok := s.tasks[taskID]
		if !ok || rec.task.Status != types.TaskRunning || s.running[taskID] != gen {
			s.mu.RUnlock()
			return
		}
		fn := rec.fn
		config := copyConfig(rec.task.Config)
		timeout := rec.task.Timeout
		s.mu.RUnlock()

		started := s.now()
		value, err := s.invoke(ctx, taskID, fn, config, timeout)
		finished := s.now()

		t, ok := s.finish(taskID, gen, started, finished, value, err)
		if ok && s.observer != nil {
			s.observer.ObserveAttempt(t, finished.Sub(started))
		}
	}
}

// invoke runs the job body with the task timeout and a progress reporter
// attached. Panics are returned as errors.
func (s *Service) invoke(
	ctx context.Context, taskID string, fn types.JobFunc, config map[string]any, timeout time.Duration,
) (value *types.JobResult, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = types.WithProgressReporter(
		ctx, func(p types.Progress) {
			s.recordProgress(taskID, p)
		},
	)

	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	value, err = fn(ctx, config)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("task timed out after %v: %w", timeout, err)
	}
	if err == nil && value == nil {
		value = &types.JobResult{}
	}
	return value, err
}

// finish applies the outcome of an attempt. The returned snapshot is valid
// only when ok is true; ok is false when the task was cancelled or removed
// while the attempt ran, in which case the outcome is discarded.
func (s *Service) finish(
	taskID string, gen uint64, started, finished time.Time, value *types.JobResult, err error,
) (types.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[taskID] == gen {
		delete(s.running, taskID)
	}

	rec, ok := s.tasks[taskID]
	if !ok {
		return types.Task{}, false
	}
	t := &rec.task
	if t.Status != types.TaskRunning {
		log.Printf("[tasks] discarding outcome of task=%s: status=%s", taskID, t.Status)
		return types.Task{}, false
	}

	elapsed := finished.Sub(started)

	if err == nil {
		t.Status = types.TaskCompleted
		t.FinishedAt = &finished
		t.NextRetry = nil
		t.Progress = &types.Progress{
			Percent:        100,
			ItemsFound:     value.ItemsFound,
			ItemsProcessed: value.ItemsProcessed,
			PagesProcessed: value.PagesProcessed,
		}
		t.Result = &types.TaskResult{
			TaskID:        taskID,
			Status:        types.TaskCompleted,
			Value:         value,
			StartedAt:     started,
			FinishedAt:    finished,
			ExecutionTime: elapsed,
			Metadata:      copyStrings(t.Metadata),
		}
		s.completed++
		s.avgExec += (elapsed.Seconds() - s.avgExec) / float64(s.completed)

		log.Printf("[tasks] task=%s completed in %v", taskID, elapsed)
		return snapshot(rec), true
	}

	t.LastError = err.Error()

	if t.RetryCount < t.MaxRetries {
		t.RetryCount++
		t.Status = types.TaskRetrying
		next := finished.Add(t.RetryDelay)
		t.NextRetry = &next
		s.retried++

		log.Printf(
			"[tasks] task=%s attempt %d failed, retrying at %s: %v",
			taskID, t.RetryCount, next.Format(time.RFC3339), err,
		)
		return snapshot(rec), true
	}

	t.Status = types.TaskFailed
	t.FinishedAt = &finished
	t.NextRetry = nil
	t.Result = &types.TaskResult{
		TaskID:        taskID,
		Status:        types.TaskFailed,
		Error:         err.Error(),
		StartedAt:     started,
		FinishedAt:    finished,
		ExecutionTime: elapsed,
		Metadata:      copyStrings(t.Metadata),
	}
	s.failed++

	log.Printf("[tasks] task=%s failed after %d retries: %v", taskID, t.RetryCount, err)
	return snapshot(rec), true
}

// release drops the in-flight marker of an attempt if it still owns it.
func (s *Service) release(taskID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[taskID] == gen {
		delete(s.running, taskID)
	}
}

func (s *Service) recordProgress(taskID string, p types.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[taskID]
	if !ok || rec.task.Status != types.TaskRunning {
		return
	}
	rec.task.Progress = &p
}
