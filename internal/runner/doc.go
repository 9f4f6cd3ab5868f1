// Package runner paces and coordinates a load test.
//
// A [Scheduler] dispatches one tick per interval (1/rate) on its own
// goroutine until the configured duration has elapsed, then joins every
// dispatched tick before returning. Pacing uses either a uniform
// [golang.org/x/time/rate] limiter or exponentially distributed (Poisson)
// inter-arrival times. When RunConfig.MaxInFlight is set, a weighted
// semaphore holds back dispatch until a slot frees; nothing is queued and
// the effective rate degrades instead.
//
// A [Controller] owns one run end to end:
//
//	ctrl, err := runner.NewController(cfg, exec)
//	if err != nil {
//		return err // *runner.ConfigurationError
//	}
//	summary, err := ctrl.Run(ctx)
//
// Every tick executes the request and records its outcome into a fresh
// [metrics.Aggregator]. The summary is computed only after all ticks have
// returned, so TotalIssued always equals SuccessCount + FailureCount.
package runner
