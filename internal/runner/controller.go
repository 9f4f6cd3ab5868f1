package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/torosent/pacefire/internal/executor"
	"github.com/torosent/pacefire/internal/metrics"
)

// ErrAlreadyRun is returned when Run is called on a Controller that has
// already started.
var ErrAlreadyRun = errors.New("controller has already run")

// State is the lifecycle stage of a Controller.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// RequestExecutor performs a single request.
type RequestExecutor interface {
	Execute(ctx context.Context, spec executor.RequestSpec) executor.Outcome
}

// Observer is notified around every request. Implementations must be safe
// for concurrent use.
type Observer interface {
	Dispatched()
	Completed(executor.Outcome)
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithObserver registers o for request notifications.
func WithObserver(o Observer) ControllerOption {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithLogger sets the logger for lifecycle messages.
func WithLogger(l logrus.FieldLogger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRunID fixes the run identifier reported in logs and the Summary. By
// default a ULID is generated when Run starts.
func WithRunID(id string) ControllerOption {
	return func(c *Controller) {
		c.runID = id
	}
}

// WithScheduler overrides the default Scheduler.
func WithScheduler(s *Scheduler) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// Controller runs one load test from configuration to Summary. A Controller
// is single use.
type Controller struct {
	cfg       RunConfig
	exec      RequestExecutor
	scheduler *Scheduler
	observers []Observer
	log       logrus.FieldLogger
	runID     string

	state atomic.Int32
	agg   atomic.Pointer[metrics.Aggregator]
}

// NewController validates cfg and returns an idle Controller. Invalid
// configuration is reported as a *ConfigurationError.
func NewController(cfg RunConfig, exec RequestExecutor, opts ...ControllerOption) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, &ConfigurationError{Issues: []string{"executor is required"}}
	}
	c := &Controller{
		cfg:       cfg,
		exec:      exec,
		scheduler: NewScheduler(),
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// State returns the current lifecycle stage.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Counts returns live success and failure counts. Both are zero before Run.
func (c *Controller) Counts() (successes, failures int64) {
	if agg := c.agg.Load(); agg != nil {
		return agg.Counts()
	}
	return 0, 0
}

// Run issues requests for the configured duration, waits for all of them to
// finish and returns the summary. Cancelling ctx stops issuing early.
func (c *Controller) Run(ctx context.Context) (metrics.Summary, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return metrics.Summary{}, ErrAlreadyRun
	}
	defer c.state.Store(int32(StateCompleted))

	agg := metrics.NewAggregator()
	c.agg.Store(agg)

	runID := c.runID
	if runID == "" {
		runID = ulid.Make().String()
	}
	log := c.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"target":   c.cfg.Request.URL,
		"rate":     c.cfg.Rate,
		"duration": c.cfg.Duration,
	})
	log.Info("load test started")

	start := time.Now()
	issued := c.scheduler.Run(ctx, c.cfg, func(tickCtx context.Context) {
		for _, o := range c.observers {
			o.Dispatched()
		}
		out := c.exec.Execute(tickCtx, c.cfg.Request)
		agg.Record(out)
		for _, o := range c.observers {
			o.Completed(out)
		}
	})
	elapsed := time.Since(start)

	summary := agg.Summary(issued, elapsed)
	summary.RunID = runID

	if recorded := summary.SuccessCount + summary.FailureCount; recorded != issued {
		log.WithFields(logrus.Fields{"issued": issued, "recorded": recorded}).Error("recorded outcomes do not match issued requests")
		summary.TotalIssued = recorded
	}

	log.WithFields(logrus.Fields{
		"issued":   summary.TotalIssued,
		"failures": summary.FailureCount,
		"elapsed":  elapsed,
	}).Info("load test completed")

	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("load test interrupted")
	}
	return summary, nil
}
