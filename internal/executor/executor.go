// Package executor issues single HTTP requests and classifies their outcomes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/pacefire/internal/tracing"
)

// RequestSpec describes the request issued on every tick. It is shared
// read-only by all concurrent executions.
type RequestSpec struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// Transport performs one HTTP exchange and returns the response status code.
// A non-nil error means no response was received.
type Transport interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, error)
}

// FailureLogger receives every failed request.
type FailureLogger interface {
	LogFailure(spec RequestSpec, outcome Outcome)
}

// Option configures an Executor.
type Option func(*Executor)

// WithTracer wraps every request in a client span. When propagate is true the
// W3C trace context is injected into the request headers.
func WithTracer(tracer trace.Tracer, propagate bool) Option {
	return func(e *Executor) {
		e.tracer = tracer
		e.propagate = propagate
	}
}

// WithFailureLogger reports failures to l.
func WithFailureLogger(l FailureLogger) Option {
	return func(e *Executor) {
		e.failures = l
	}
}

// Executor performs exactly one request per Execute call and never returns an error:
// every problem is folded into the Outcome.
type Executor struct {
	transport Transport
	tracer    trace.Tracer
	propagate bool
	failures  FailureLogger
	now       func() time.Time
}

// New creates an Executor over transport.
func New(transport Transport, opts ...Option) *Executor {
	e := &Executor{transport: transport, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Execute issues spec once and reports how it went.
func (e *Executor) Execute(ctx context.Context, spec RequestSpec) (out Outcome) {
	if ctx == nil {
		ctx = context.Background()
	}

	headers := spec.Headers
	var span trace.Span
	if e.tracer != nil {
		ctx, span = tracing.StartRequestSpan(ctx, e.tracer, spec.Method, spec.URL)
		if e.propagate {
			headers = tracing.InjectHeaders(ctx, spec.Headers)
		}
	}

	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			out = Failure(ReasonTransport, e.now().Sub(start), fmt.Errorf("transport panic: %v", r))
		}
		if span != nil {
			tracing.EndSpan(span, out.StatusCode, out.Err)
		}
		if out.Kind == OutcomeFailure && e.failures != nil {
			e.failures.LogFailure(spec, out)
		}
	}()

	status, err := e.transport.Do(ctx, spec.Method, spec.URL, headers, spec.Body)
	latency := e.now().Sub(start)
	if err != nil {
		return Failure(classify(err), latency, err)
	}
	return Success(status, latency)
}

func classify(err error) FailureReason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}

// LogrusFailureLogger writes failures as structured log entries.
type LogrusFailureLogger struct {
	logger logrus.FieldLogger
	level  logrus.Level
}

// NewLogrusFailureLogger logs each failure to logger at level.
func NewLogrusFailureLogger(logger logrus.FieldLogger, level logrus.Level) *LogrusFailureLogger {
	if level < logrus.ErrorLevel {
		level = logrus.ErrorLevel
	}
	return &LogrusFailureLogger{logger: logger, level: level}
}

func (l *LogrusFailureLogger) LogFailure(spec RequestSpec, outcome Outcome) {
	if l == nil || l.logger == nil {
		return
	}
	entry := l.logger.WithFields(logrus.Fields{
		"method":  spec.Method,
		"url":     spec.URL,
		"reason":  outcome.Reason.String(),
		"latency": outcome.Latency,
	}).WithError(outcome.Err)

	switch l.level {
	case logrus.ErrorLevel:
		entry.Error("request failed")
	case logrus.WarnLevel:
		entry.Warn("request failed")
	case logrus.InfoLevel:
		entry.Info("request failed")
	default:
		entry.Debug("request failed")
	}
}
