package runner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/torosent/pacefire/internal/executor"
)

// ArrivalModel selects how ticks are spaced in time.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// RunConfig is the immutable description of one run.
type RunConfig struct {
	Request  executor.RequestSpec
	Rate     float64       // requests per second, > 0
	Duration time.Duration // how long to issue requests, >= 0

	// MaxInFlight caps concurrently outstanding requests. Zero means unbounded.
	MaxInFlight  int
	ArrivalModel ArrivalModel
}

// ConfigurationError reports invalid RunConfig fields.
type ConfigurationError struct {
	Issues []string
}

func (e *ConfigurationError) Error() string {
	return "invalid run configuration: " + strings.Join(e.Issues, "; ")
}

// Validate returns a *ConfigurationError when any field is out of range.
func (c RunConfig) Validate() error {
	var issues []string
	if strings.TrimSpace(c.Request.URL) == "" {
		issues = append(issues, "request URL is required")
	}
	if strings.TrimSpace(c.Request.Method) == "" {
		issues = append(issues, "request method is required")
	}
	if math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) || c.Rate <= 0 {
		issues = append(issues, fmt.Sprintf("rate must be a positive number, got %v", c.Rate))
	}
	if c.Duration < 0 {
		issues = append(issues, fmt.Sprintf("duration must be >= 0, got %s", c.Duration))
	}
	if c.MaxInFlight < 0 {
		issues = append(issues, fmt.Sprintf("max in flight must be >= 0, got %d", c.MaxInFlight))
	}
	switch c.ArrivalModel {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("unknown arrival model %q", c.ArrivalModel))
	}
	if len(issues) > 0 {
		return &ConfigurationError{Issues: issues}
	}
	return nil
}
