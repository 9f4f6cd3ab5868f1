package runner

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Scheduler dispatches ticks at a configured rate for a fixed duration.
type Scheduler struct {
	sampler func() float64
	now     func() time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPoissonSampler replaces the exponential sampler used by the Poisson
// arrival model. Intended for deterministic tests.
func WithPoissonSampler(sample func() float64) SchedulerOption {
	return func(s *Scheduler) {
		s.sampler = sample
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run calls onTick on its own goroutine once per interval until cfg.Duration
// has elapsed or ctx is cancelled, then waits for every dispatched call to
// return. It returns the number of ticks dispatched.
//
// Each onTick receives a context that is not cancelled with ctx, so
// requests already in flight complete and are counted.
func (s *Scheduler) Run(ctx context.Context, cfg RunConfig, onTick func(context.Context)) int64 {
	if cfg.Duration <= 0 || cfg.Rate <= 0 {
		return 0
	}

	start := s.now()
	pacingCtx, cancel := context.WithDeadline(ctx, start.Add(cfg.Duration))
	defer cancel()

	tickCtx := context.WithoutCancel(ctx)
	arrival := newArrivalController(cfg.ArrivalModel, cfg.Rate, s.sampler)

	var gate *semaphore.Weighted
	if cfg.MaxInFlight > 0 {
		gate = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}

	var (
		wg     sync.WaitGroup
		issued int64
	)
	for {
		if err := arrival.Wait(pacingCtx); err != nil {
			break
		}
		if gate != nil {
			if err := gate.Acquire(pacingCtx, 1); err != nil {
				break
			}
		}
		if pacingCtx.Err() != nil || s.now().Sub(start) >= cfg.Duration {
			if gate != nil {
				gate.Release(1)
			}
			break
		}

		issued++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate != nil {
				defer gate.Release(1)
			}
			onTick(tickCtx)
		}()
	}

	wg.Wait()
	return issued
}
