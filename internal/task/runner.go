package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// Runner defaults
const (
	DefaultWorkerCount  = 2
	DefaultPollInterval = 5 * time.Second
	DefaultStuckJobAge  = 10 * time.Minute
)

// RunnerConfig bounds the background runner. Zero values fall back to the
// defaults.
type RunnerConfig struct {
	WorkerCount  int
	PollInterval time.Duration
	StuckJobAge  time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StuckJobAge <= 0 {
		c.StuckJobAge = DefaultStuckJobAge
	}
	return c
}

// Runner polls the queue from a fixed pool of workers and periodically
// requeues jobs stuck in processing (left behind by a crashed instance).
// It runs alongside inline drains; the store's atomic dequeue keeps the
// two from double-processing a job.
type Runner struct {
	queue  *Queue
	jobs   store.JobStore
	config RunnerConfig
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner(queue *Queue, jobs store.JobStore, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if queue == nil {
		return nil, ErrNilQueue
	}
	if jobs == nil {
		return nil, ErrNilJobStore
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		queue:  queue,
		jobs:   jobs,
		config: config.withDefaults(),
		logger: logger.With("component", "task_runner"),
	}, nil
}

// Start launches the worker pool and the stuck-job monitor. It returns
// immediately; call Stop to shut down.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	r.wg.Add(1)
	go r.monitorStuck(ctx)

	r.logger.Info("task runner started",
		"workers", r.config.WorkerCount,
		"poll_interval", r.config.PollInterval)
}

// Stop cancels all workers and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker", id)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		// Drain everything available, then wait for the next tick.
		for {
			if ctx.Err() != nil {
				return
			}
			job, err := r.queue.DequeueNext(ctx)
			if errors.Is(err, store.ErrJobNotFound) {
				break
			}
			if err != nil {
				log.Error("failed to dequeue job", "error", err)
				break
			}
			r.queue.Process(ctx, job)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) monitorStuck(ctx context.Context) {
	defer r.wg.Done()

	// Check at the stuck age itself; finer granularity buys nothing.
	ticker := time.NewTicker(r.config.StuckJobAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reset, err := r.jobs.ResetStuck(ctx, r.config.StuckJobAge)
			if err != nil {
				r.logger.Error("failed to reset stuck jobs", "error", err)
				continue
			}
			if reset > 0 {
				r.logger.Warn("requeued stuck jobs", "count", reset)
			}
		}
	}
}
