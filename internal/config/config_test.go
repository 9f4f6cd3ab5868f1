package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/pacefire/internal/config"
)

func TestLoadNoArgsRequestsHelp(t *testing.T) {
	loader := config.NewLoader()

	_, err := loader.Load([]string{})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load() error = %v, want ErrHelpRequested", err)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{"--target", "http://example.com", "--duration", "0"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Method != "GET" {
		t.Errorf("Method = %q, want GET", cfg.Method)
	}
	if cfg.Rate != 1 {
		t.Errorf("Rate = %v, want 1", cfg.Rate)
	}
	if cfg.Duration != 0 {
		t.Errorf("Duration = %s, want 0", cfg.Duration)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.MaxInFlight != 0 {
		t.Errorf("MaxInFlight = %d, want 0", cfg.MaxInFlight)
	}
	if cfg.Arrival != config.ArrivalModelUniform {
		t.Errorf("Arrival = %q, want uniform", cfg.Arrival)
	}
	if cfg.Output != config.OutputText {
		t.Errorf("Output = %q, want text", cfg.Output)
	}
	if !cfg.Progress {
		t.Errorf("Progress = false, want true")
	}
	if len(cfg.Headers) != 0 {
		t.Errorf("Headers len = %d, want 0", len(cfg.Headers))
	}
}

func TestLoadOriginalStyleFlags(t *testing.T) {
	loader := config.NewLoader()
	cfg, err := loader.Load([]string{
		"--url", "http://example.com/api",
		"--method", "post",
		"--headers", `{"Content-Type":"application/json","x-trace":"abc"}`,
		"--body", `{"k":1}`,
		"--duration", "10",
		"--qps", "5",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "http://example.com/api" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %q, want POST", cfg.Method)
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers[Content-Type] = %q", cfg.Headers["Content-Type"])
	}
	if cfg.Headers["X-Trace"] != "abc" {
		t.Errorf("Headers[X-Trace] = %q", cfg.Headers["X-Trace"])
	}
	if cfg.Duration != 10*time.Second {
		t.Errorf("Duration = %s, want 10s", cfg.Duration)
	}
	if cfg.Rate != 5 {
		t.Errorf("Rate = %v, want 5", cfg.Rate)
	}
}

func TestRateAndDurationAreIndependent(t *testing.T) {
	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--target", "http://example.com", "--duration", "3", "--rate", "40"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rate != 40 {
		t.Errorf("Rate = %v, want 40", cfg.Rate)
	}
	if cfg.Duration != 3*time.Second {
		t.Errorf("Duration = %s, want 3s", cfg.Duration)
	}
}

func TestLoadInvalidHeadersJSON(t *testing.T) {
	loader := config.NewLoader()
	_, err := loader.Load([]string{"--target", "http://example.com", "--headers", "not-json"})
	if err == nil || !strings.Contains(err.Error(), "headers not json") {
		t.Fatalf("Load() error = %v, want headers not json", err)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"target": "https://api.example.com",
		"method": "PUT",
		"headers": {"Content-Type": "application/json"},
		"body": "{\"foo\":\"bar\"}",
		"rate": 12.5,
		"duration": "2m",
		"timeout": "45s",
		"max_in_flight": 64,
		"output": "json",
		"thresholds": ["latency:p99 < 0.5"],
		"tracing": {"endpoint": "localhost:4317", "insecure": true, "sample_rate": 0.25}
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path, "--method", "PATCH", "--header", "Authorization=Bearer token"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://api.example.com" {
		t.Errorf("TargetURL = %q, want https://api.example.com", cfg.TargetURL)
	}
	if cfg.Method != "PATCH" {
		t.Errorf("Method = %q, want PATCH", cfg.Method)
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers[Content-Type] = %q, want application/json", cfg.Headers["Content-Type"])
	}
	if cfg.Headers["Authorization"] != "Bearer token" {
		t.Errorf("Headers[Authorization] = %q, want Bearer token", cfg.Headers["Authorization"])
	}
	if cfg.Body != `{"foo":"bar"}` {
		t.Errorf("Body = %q, want {\"foo\":\"bar\"}", cfg.Body)
	}
	if cfg.Rate != 12.5 {
		t.Errorf("Rate = %v, want 12.5", cfg.Rate)
	}
	if cfg.Duration != 2*time.Minute {
		t.Errorf("Duration = %s, want 2m", cfg.Duration)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s, want 45s", cfg.Timeout)
	}
	if cfg.MaxInFlight != 64 {
		t.Errorf("MaxInFlight = %d, want 64", cfg.MaxInFlight)
	}
	if cfg.Output != config.OutputJSON {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v, want 1 entry", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || !cfg.Tracing.Insecure || cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"target: https://service.example.com",
		"method: POST",
		"headers:",
		"  X-Env: staging",
		"rate: 20",
		"duration: 30",
		"timeout: 15s",
		"arrival_model: poisson",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://service.example.com" {
		t.Errorf("TargetURL = %q, want https://service.example.com", cfg.TargetURL)
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %q, want POST", cfg.Method)
	}
	if cfg.Headers["X-Env"] != "staging" {
		t.Errorf("Headers[X-Env] = %q, want staging", cfg.Headers["X-Env"])
	}
	if cfg.Rate != 20 {
		t.Errorf("Rate = %v, want 20", cfg.Rate)
	}
	if cfg.Duration != 30*time.Second {
		t.Errorf("Duration = %s, want 30s", cfg.Duration)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %s, want 15s", cfg.Timeout)
	}
	if cfg.Arrival != config.ArrivalModelPoisson {
		t.Errorf("Arrival = %q, want poisson", cfg.Arrival)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PACEFIRE_RATE", "7")
	t.Setenv("PACEFIRE_MAX_IN_FLIGHT", "3")
	t.Setenv("PACEFIRE_DURATION", "45s")

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--target", "http://example.com"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rate != 7 {
		t.Errorf("Rate = %v, want 7", cfg.Rate)
	}
	if cfg.MaxInFlight != 3 {
		t.Errorf("MaxInFlight = %d, want 3", cfg.MaxInFlight)
	}
	if cfg.Duration != 45*time.Second {
		t.Errorf("Duration = %s, want 45s", cfg.Duration)
	}
}

func TestLoadRequiresDuration(t *testing.T) {
	t.Setenv("PACEFIRE_DURATION", "")

	loader := config.NewLoader()
	_, err := loader.Load([]string{"--target", "http://example.com", "--rate", "10"})
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load() error = %v, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "duration is required") {
		t.Errorf("Load() error = %q, want duration is required", err.Error())
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PACEFIRE_RATE", "7")

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--target", "http://example.com", "--rate", "9", "--duration", "1"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rate != 9 {
		t.Errorf("Rate = %v, want 9", cfg.Rate)
	}
}

func TestFlagBodyOverridesConfigBodyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"bodyFile":"payload.json"}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path, "--body", "inline", "--duration", "1"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Body != "inline" {
		t.Errorf("Body = %q, want inline", cfg.Body)
	}
	if cfg.BodyFile != "" {
		t.Errorf("BodyFile = %q, want empty", cfg.BodyFile)
	}
}

func TestConfigValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		have config.Config
		want []string
	}{
		{
			name: "missing target",
			have: config.Config{Method: "GET", Rate: 1},
			want: []string{"target"},
		},
		{
			name: "relative target",
			have: config.Config{TargetURL: "/just/a/path", Method: "GET", Rate: 1},
			want: []string{"absolute URL"},
		},
		{
			name: "unsupported scheme",
			have: config.Config{TargetURL: "ftp://example.com", Method: "GET", Rate: 1},
			want: []string{"scheme"},
		},
		{
			name: "negative values",
			have: config.Config{
				TargetURL:   "https://example.com",
				Method:      "GET",
				Rate:        -5,
				Duration:    -time.Second,
				Timeout:     -1,
				MaxInFlight: -1,
			},
			want: []string{"rate", "duration", "timeout", "max-in-flight"},
		},
		{
			name: "zero rate",
			have: config.Config{TargetURL: "https://example.com", Method: "GET"},
			want: []string{"rate must be > 0"},
		},
		{
			name: "unknown method",
			have: config.Config{TargetURL: "https://example.com", Method: "BREW", Rate: 1},
			want: []string{"method"},
		},
		{
			name: "body conflict",
			have: config.Config{
				TargetURL: "https://example.com",
				Method:    "POST",
				Rate:      1,
				Body:      "inline",
				BodyFile:  "payload.json",
			},
			want: []string{"body"},
		},
		{
			name: "bad output and arrival",
			have: config.Config{
				TargetURL: "https://example.com",
				Method:    "GET",
				Rate:      1,
				Output:    "xml",
				Arrival:   "bursty",
			},
			want: []string{"output format", "arrival model"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.have.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error %q missing %q", err.Error(), want)
				}
			}
		})
	}
}

func TestConfigValidateAcceptsZeroDuration(t *testing.T) {
	cfg := config.Config{TargetURL: "http://localhost:8080", Method: "GET", Rate: 5}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
