package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to setting names when reading environment variables,
// e.g. PACEFIRE_RATE or PACEFIRE_MAX_IN_FLIGHT.
const EnvPrefix = "PACEFIRE"

// Loader handles loading configuration from files, the environment and
// command-line arguments, in increasing order of precedence.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

var envKeys = []string{
	"target", "method", "body", "body_file", "rate", "duration", "timeout",
	"max_in_flight", "arrival_model", "output", "log_level", "log_errors",
	"progress", "metrics_addr",
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	cfgViper.SetEnvPrefix(EnvPrefix)
	for _, key := range envKeys {
		if err := cfgViper.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Method:     http.MethodGet,
		Headers:    map[string]string{},
		Rate:       1,
		Timeout:    30 * time.Second,
		Arrival:    ArrivalModelUniform,
		Output:     OutputText,
		LogLevel:   "info",
		Progress:   true,
		ConfigFile: configPath,
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	if !flagSet.Changed("duration") && !cfgViper.IsSet("duration") {
		return nil, ValidationError{issues: []string{"duration is required (seconds, or a Go duration like 30s)"}}
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	cfg.LogLevel = strings.TrimSpace(cfg.LogLevel)
	cfg.MetricsAddr = strings.TrimSpace(cfg.MetricsAddr)

	return cfg, nil
}

// applyConfigSettings applies settings from a config file or the environment
// to the Config struct.
func applyConfigSettings(cfg *Config, settings fileSettings) error {
	if len(settings) == 0 {
		return nil
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	var arrival, output string
	settings.text(&cfg.TargetURL, "target", "url")
	settings.text(&cfg.Method, "method")
	settings.text(&cfg.Body, "body")
	settings.text(&cfg.BodyFile, "body_file", "bodyfile")
	settings.text(&arrival, "arrival_model", "arrivalmodel")
	settings.text(&output, "output")
	settings.text(&cfg.LogLevel, "log_level", "loglevel")
	settings.text(&cfg.MetricsAddr, "metrics_addr", "metricsaddr")
	if arrival != "" {
		cfg.Arrival = ArrivalModel(strings.ToLower(strings.TrimSpace(arrival)))
	}
	if output != "" {
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(output)))
	}

	tracing, err := settings.section("tracing")
	if err != nil {
		return err
	}

	return errors.Join(
		settings.number(&cfg.Rate, "rate", "qps"),
		settings.duration(&cfg.Duration, "duration"),
		settings.duration(&cfg.Timeout, "timeout"),
		settings.count(&cfg.MaxInFlight, "max_in_flight", "maxinflight"),
		settings.flag(&cfg.LogErrors, "log_errors", "logerrors"),
		settings.flag(&cfg.Progress, "progress"),
		settings.headers(cfg.Headers, "headers"),
		settings.list(&cfg.Thresholds, "thresholds"),
		applyTracingSettings(&cfg.Tracing, tracing),
	)
}

func applyTracingSettings(tc *TracingConfig, settings fileSettings) error {
	if settings == nil {
		return nil
	}
	settings.text(&tc.Endpoint, "endpoint")
	settings.text(&tc.Protocol, "protocol")
	settings.text(&tc.ServiceName, "service_name", "servicename")
	tc.Endpoint = strings.TrimSpace(tc.Endpoint)
	tc.Protocol = strings.ToLower(strings.TrimSpace(tc.Protocol))
	tc.ServiceName = strings.TrimSpace(tc.ServiceName)

	if err := errors.Join(
		settings.flag(&tc.Insecure, "insecure"),
		settings.number(&tc.SampleRate, "sample_rate", "samplerate"),
		settings.flag(&tc.Propagate, "propagate"),
	); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}
