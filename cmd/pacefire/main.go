package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/torosent/pacefire/internal/config"
	"github.com/torosent/pacefire/internal/executor"
	"github.com/torosent/pacefire/internal/httpclient"
	"github.com/torosent/pacefire/internal/output"
	"github.com/torosent/pacefire/internal/runner"
	"github.com/torosent/pacefire/internal/telemetry"
	"github.com/torosent/pacefire/internal/threshold"
	"github.com/torosent/pacefire/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(parent context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}

	spec, err := httpclient.BuildSpec(cfg)
	if err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := ulid.Make().String()

	tp, err := tracing.Init(ctx, cfg.Tracing, tracing.Run{
		ID:              runID,
		Target:          spec.URL,
		Rate:            cfg.Rate,
		ArrivalModel:    string(cfg.Arrival),
		DurationSeconds: cfg.Duration.Seconds(),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	if tp.Active() {
		log.WithFields(logrus.Fields{
			"exporting": tp.Exporting(),
			"propagate": tp.ShouldPropagate(),
		}).Debug("tracing initialized")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	exec := executor.New(
		httpclient.NewTransport(httpclient.NewClient(cfg.Timeout)),
		executorOptions(cfg, tp, log.WithField("run_id", runID))...,
	)

	ctrlOpts := []runner.ControllerOption{runner.WithLogger(log), runner.WithRunID(runID)}
	if cfg.MetricsAddr != "" {
		rec := telemetry.NewRecorder(metricLabels(runID, spec))
		srv, err := telemetry.Serve(cfg.MetricsAddr, rec, log)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		ctrlOpts = append(ctrlOpts, runner.WithObserver(rec))
	}

	ctrl, err := runner.NewController(runConfigFrom(cfg, spec), exec, ctrlOpts...)
	if err != nil {
		return err
	}

	var progress *output.ProgressReporter
	if cfg.Progress && cfg.Output == config.OutputText {
		progress = output.NewProgressReporter(ctrl, progressInterval, stderr)
		progress.Start()
	}

	summary, err := ctrl.Run(ctx)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	results := threshold.NewEvaluator(thresholds).Evaluate(summary)

	switch cfg.Output {
	case config.OutputJSON:
		err = output.PrintJSONReport(stdout, summary, results)
	case config.OutputYAML:
		err = output.PrintYAMLReport(stdout, summary, results)
	default:
		output.PrintReport(stdout, summary, results)
	}
	if err != nil {
		return err
	}

	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	return nil
}

func runConfigFrom(cfg *config.Config, spec executor.RequestSpec) runner.RunConfig {
	arrival := runner.ArrivalModelUniform
	if cfg.Arrival == config.ArrivalModelPoisson {
		arrival = runner.ArrivalModelPoisson
	}
	return runner.RunConfig{
		Request:      spec,
		Rate:         cfg.Rate,
		Duration:     cfg.Duration,
		MaxInFlight:  cfg.MaxInFlight,
		ArrivalModel: arrival,
	}
}

// metricLabels are attached to every exported series so scrapes from
// concurrent runs stay apart.
func metricLabels(runID string, spec executor.RequestSpec) prometheus.Labels {
	return prometheus.Labels{"run_id": runID, "target": spec.URL}
}

func executorOptions(cfg *config.Config, tp *tracing.Provider, log logrus.FieldLogger) []executor.Option {
	level := logrus.DebugLevel
	if cfg.LogErrors {
		level = logrus.WarnLevel
	}
	opts := []executor.Option{
		executor.WithFailureLogger(executor.NewLogrusFailureLogger(log, level)),
	}
	if tp.Active() {
		opts = append(opts, executor.WithTracer(tp.Tracer(), tp.ShouldPropagate()))
	}
	return opts
}

func newLogger(level string, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	return log, nil
}
