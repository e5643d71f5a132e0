package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/danpasecinic/harvester/internal/types"
)

func (o *Orchestrator) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(o.cfg.MaintenanceInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			wait := o.cfg.MaintenanceInterval
			if err := o.safeMaintenance(ctx); err != nil {
				log.Printf(
					"[orchestrator] maintenance failed, backing off %v: %v",
					o.cfg.MaintenanceErrorBackoff, err,
				)
				wait = o.cfg.MaintenanceErrorBackoff
			}
			timer.Reset(wait)
		}
	}
}

func (o *Orchestrator) safeMaintenance(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("maintenance panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return o.RunMaintenance(ctx)
}

// RunMaintenance performs one maintenance pass: due retries are promoted and
// resubmitted, health is evaluated, and the cleanup routines run once per
// CleanupInterval. Resubmit and archive failures are returned joined.
func (o *Orchestrator) RunMaintenance(ctx context.Context) error {
	now := o.now()

	o.tasks.PromoteRetries(now)

	var errs []error

	// Promoted tasks that could not be resubmitted stay PENDING and are
	// retried on the next pass.
	for _, task := range o.tasks.List(types.TaskPending) {
		if task.RetryCount == 0 {
			continue
		}
		if !o.tasks.Submit(task.TaskID) {
			errs = append(errs, fmt.Errorf("failed to resubmit task %s", task.TaskID))
		}
	}

	o.metrics.observeHealth(o.health.CheckHealth())

	o.mu.Lock()
	due := now.Sub(o.lastCleanup) >= o.cfg.CleanupInterval
	if due {
		o.lastCleanup = now
	}
	o.mu.Unlock()

	if due {
		if _, err := o.cleanup(ctx, o.cfg.CompletedRetention, o.cfg.FailedRetention); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// cleanup evicts sessions before tasks so every evicted session has absorbed
// its task's final state. Each retention pass archives its sessions in one
// batch, so Archived counts the sessions of batches that were written.
func (o *Orchestrator) cleanup(
	ctx context.Context, completed, failed time.Duration,
) (types.CleanupResult, error) {
	var (
		result types.CleanupResult
		errs   []error
	)

	for _, pass := range []struct {
		age      time.Duration
		statuses []types.TaskStatus
	}{
		{completed, []types.TaskStatus{types.TaskCompleted, types.TaskCancelled}},
		{failed, []types.TaskStatus{types.TaskFailed}},
	} {
		evicted, err := o.sessions.CleanupOlderThan(ctx, pass.age, pass.statuses...)
		result.SessionsRemoved += evicted
		if err != nil {
			errs = append(errs, err)
		} else {
			result.Archived += evicted
		}
		result.TasksRemoved += len(o.tasks.CleanupOlderThan(pass.age, pass.statuses...))
	}

	if result.TasksRemoved > 0 || result.SessionsRemoved > 0 {
		log.Printf(
			"[orchestrator] cleanup removed tasks=%d sessions=%d archived=%d",
			result.TasksRemoved, result.SessionsRemoved, result.Archived,
		)
	}
	return result, errors.Join(errs...)
}
