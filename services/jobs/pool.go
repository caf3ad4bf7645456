// Package jobs runs fire-and-forget work on a bounded set of goroutines.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/dormportal/core"
)

// Job is a unit of background work. ctx is cancelled when the pool is shut down before the job is done.
type Job = func(ctx context.Context)

type Pool struct {
	queue  chan Job
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger core.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines consuming a queue of queueSize pending jobs.
func NewPool(workers, queueSize int, logger core.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Job, queueSize),
		group:  new(errgroup.Group),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.group.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for job := range p.queue {
		p.run(job)
	}
	return nil
}

func (p *Pool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			finishedJobs.WithLabelValues("panicked").Inc()
			if p.logger != nil {
				p.logger.Error(fmt.Sprintf("jobs: job panicked: %v", r))
			}
		}
	}()
	job(p.ctx)
	finishedJobs.WithLabelValues("done").Inc()
}

// Submit queues job without blocking. It returns false when the job was refused (queue full or pool closed).
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		submittedJobs.WithLabelValues("refused").Inc()
		return false
	}

	select {
	case p.queue <- job:
		submittedJobs.WithLabelValues("accepted").Inc()
		return true
	default:
		submittedJobs.WithLabelValues("refused").Inc()
		return false
	}
}

// Close stops accepting jobs and waits for the queued ones to finish.
// When ctx expires first, running jobs see their context cancelled and Close returns ctx's error.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return errors.Wrap(ctx.Err(), "draining job queue")
	}
}
