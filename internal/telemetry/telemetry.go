// Package telemetry exposes live run metrics in the Prometheus format.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/torosent/pacefire/internal/executor"
)

const namespace = "pacefire"

// Recorder counts dispatched and completed requests. It satisfies
// runner.Observer.
type Recorder struct {
	registry  *prometheus.Registry
	issued    prometheus.Counter
	inFlight  prometheus.Gauge
	outcomes  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	statusOut *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry. Labels are attached
// to every series; pacefire passes the run ID and target URL.
func NewRecorder(labels prometheus.Labels) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_issued_total",
			Help:        "Requests dispatched by the scheduler.",
			ConstLabels: labels,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "requests_in_flight",
			Help:        "Requests dispatched but not yet completed.",
			ConstLabels: labels,
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_completed_total",
			Help:        "Completed requests partitioned by outcome and failure reason.",
			ConstLabels: labels,
		}, []string{"outcome", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "request_duration_seconds",
			Help:        "Request latency partitioned by outcome.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"outcome"}),
		statusOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "responses_total",
			Help:        "Responses received partitioned by HTTP status code.",
			ConstLabels: labels,
		}, []string{"code"}),
	}
	r.registry.MustRegister(r.issued, r.inFlight, r.outcomes, r.latency, r.statusOut)
	return r
}

// Dispatched records a request leaving the scheduler.
func (r *Recorder) Dispatched() {
	r.issued.Inc()
	r.inFlight.Inc()
}

// Completed records a request's outcome.
func (r *Recorder) Completed(o executor.Outcome) {
	r.inFlight.Dec()

	outcome := "success"
	switch {
	case o.Kind == executor.OutcomeFailure:
		outcome = "failure"
	case o.IsApplicationError():
		outcome = "error_status"
	}
	r.outcomes.WithLabelValues(outcome, o.Reason.String()).Inc()
	r.latency.WithLabelValues(outcome).Observe(o.Latency.Seconds())
	if o.Kind == executor.OutcomeSuccess {
		r.statusOut.WithLabelValues(strconv.Itoa(o.StatusCode)).Inc()
	}
}

// Handler serves the recorder's metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Server serves /metrics for the lifetime of a run.
type Server struct {
	srv *http.Server
	ln  net.Listener
	log logrus.FieldLogger
}

// Serve starts listening on addr and serving r on /metrics.
func Serve(addr string, r *Recorder, log logrus.FieldLogger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
		log: log,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("metrics server stopped")
		}
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("serving prometheus metrics on /metrics")
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
