package pool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/danpasecinic/harvester/internal/scheduler"
	"github.com/danpasecinic/harvester/internal/types"
)

var (
	// ErrPoolClosed is returned when submitting to a pool that is shutting down
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrDuplicateJob is returned when a job with the same ID is queued or running
	ErrDuplicateJob = errors.New("job already queued or running")
)

// Job is a unit of work handed to the pool.
type Job struct {
	ID       string
	Priority types.Priority
	Run      func(ctx context.Context)
}

// Pool runs jobs on a fixed number of goroutines. Jobs wait in a backlog
// ordered by the configured scheduler until a worker is free.
type Pool struct {
	workers int
	backlog scheduler.Scheduler

	mu      sync.Mutex
	cond    *sync.Cond
	queued  map[string]Job
	running map[string]context.CancelFunc
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts a pool with the given number of workers.
// A nil backlog defaults to a priority queue.
func New(workers int, backlog scheduler.Scheduler) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if backlog == nil {
		backlog = scheduler.NewPriorityQueue()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers: workers,
		backlog: backlog,
		queued:  make(map[string]Job),
		running: make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit queues a job and returns immediately.
func (p *Pool) Submit(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s has no body", job.ID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if _, ok := p.queued[job.ID]; ok {
		return ErrDuplicateJob
	}
	if _, ok := p.running[job.ID]; ok {
		return ErrDuplicateJob
	}

	p.queued[job.ID] = job
	p.backlog.Push(scheduler.Item{ID: job.ID, Priority: job.Priority})
	p.cond.Signal()
	return nil
}

// Dequeue removes a job that has not started yet.
func (p *Pool) Dequeue(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.queued[id]; !ok {
		return false
	}
	delete(p.queued, id)
	p.backlog.Remove(id)
	return true
}

// Interrupt cancels the context of a running job. The job body decides
// whether and when it stops.
func (p *Pool) Interrupt(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cancel, ok := p.running[id]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() types.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return types.PoolStats{
		Workers: p.workers,
		Queued:  len(p.queued),
		Active:  len(p.running),
		Closed:  p.closed,
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. When ctx expires first, the backlog is dropped, running jobs are
// interrupted and ctx.Err() is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		dropped := len(p.queued)
		for id := range p.queued {
			p.backlog.Remove(id)
			delete(p.queued, id)
		}
		remaining := len(p.running)
		p.mu.Unlock()

		p.cancel()
		log.Printf("[pool] shutdown timeout reached, dropped %d queued jobs, %d still running", dropped, remaining)
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queued) == 0 && !p.closed {
			p.cond.Wait()
		}

		job, ok := p.next()
		if !ok {
			p.mu.Unlock()
			return
		}

		ctx, cancel := context.WithCancel(p.ctx)
		p.running[job.ID] = cancel
		p.mu.Unlock()

		p.run(ctx, job)
		cancel()

		p.mu.Lock()
		delete(p.running, job.ID)
		p.mu.Unlock()
	}
}

// next pops the next live job. Caller holds p.mu.
func (p *Pool) next() (Job, bool) {
	for {
		item, ok := p.backlog.Pop()
		if !ok {
			return Job{}, false
		}
		job, ok := p.queued[item.ID]
		if !ok {
			continue
		}
		delete(p.queued, item.ID)
		return job, true
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[pool] job %s panicked: %v\n%s", job.ID, r, debug.Stack())
		}
	}()
	job.Run(ctx)
}
