// Package scheduler fires a job at a fixed interval on a single worker. A
// firing that finds the previous run still going is dropped, not queued.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/metrics"
)

type Job func(ctx context.Context) error

type Scheduler struct {
	name     string
	interval time.Duration
	job      Job

	guard   sync.Mutex
	wg      sync.WaitGroup
	runs    atomic.Int64
	dropped atomic.Int64
}

func New(interval time.Duration, job Job) *Scheduler {
	return &Scheduler{name: "tick", interval: interval, job: job}
}

// Named sets the job name used in logs. Only the "tick" job feeds the
// dropped-ticks metric.
func (s *Scheduler) Named(name string) *Scheduler {
	s.name = name
	return s
}

// Run fires the job immediately and then every interval until ctx is done.
// It waits for a running job to finish before returning.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	defer s.wg.Wait()

	s.Fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Fire(ctx)
		}
	}
}

// Fire starts the job in the background unless it is already running.
// It reports whether the job was started.
func (s *Scheduler) Fire(ctx context.Context) bool {
	if !s.guard.TryLock() {
		s.dropped.Add(1)
		if s.name == "tick" {
			metrics.TicksDropped.Inc()
		}
		logger.Warn(ctx, "Previous run still going, dropping this one", "job", s.name)
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.guard.Unlock()
		s.runs.Add(1)
		if err := s.runSafe(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Scheduled job failed", err, "job", s.name)
		}
	}()
	return true
}

func (s *Scheduler) runSafe(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	// the job keeps running to completion after shutdown starts
	return s.job(context.WithoutCancel(ctx))
}

// Wait blocks until a running job has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) Runs() int64    { return s.runs.Load() }
func (s *Scheduler) Dropped() int64 { return s.dropped.Load() }
