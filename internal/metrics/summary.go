package metrics

import (
	"sort"
	"time"
)

// Summary reports the statistics of a completed run. Latency fields are in
// seconds and are zero when HasSuccessfulSamples is false.
type Summary struct {
	RunID                string  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	TotalIssued          int64   `json:"total_requests" yaml:"total_requests"`
	SuccessCount         int64   `json:"successful_requests" yaml:"successful_requests"`
	FailureCount         int64   `json:"failed_requests" yaml:"failed_requests"`
	HasSuccessfulSamples bool    `json:"has_successful_samples" yaml:"has_successful_samples"`
	MeanLatencySeconds   float64 `json:"mean_latency_seconds" yaml:"mean_latency_seconds"`
	MedianLatencySeconds float64 `json:"median_latency_seconds" yaml:"median_latency_seconds"`
	MinLatencySeconds    float64 `json:"min_latency_seconds" yaml:"min_latency_seconds"`
	MaxLatencySeconds    float64 `json:"max_latency_seconds" yaml:"max_latency_seconds"`
	P90LatencySeconds    float64 `json:"p90_latency_seconds" yaml:"p90_latency_seconds"`
	P99LatencySeconds    float64 `json:"p99_latency_seconds" yaml:"p99_latency_seconds"`

	TransportFailures int64            `json:"transport_failures" yaml:"transport_failures"`
	TimeoutFailures   int64            `json:"timeout_failures" yaml:"timeout_failures"`
	ApplicationErrors int64            `json:"application_errors" yaml:"application_errors"`
	StatusCodes       map[string]int64 `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
	Errors            map[string]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`

	Elapsed        time.Duration `json:"-" yaml:"-"`
	ElapsedSeconds float64       `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`
}

// Summarize computes count and latency statistics over successful samples.
// The result does not depend on the order of samples.
func Summarize(samples []time.Duration, failures, totalIssued int64) Summary {
	s := Summary{
		TotalIssued:  totalIssued,
		SuccessCount: int64(len(samples)),
		FailureCount: failures,
	}
	if len(samples) == 0 {
		return s
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float64
	for _, d := range sorted {
		sum += d.Seconds()
	}

	n := len(sorted)
	s.HasSuccessfulSamples = true
	s.MeanLatencySeconds = sum / float64(n)
	s.MinLatencySeconds = sorted[0].Seconds()
	s.MaxLatencySeconds = sorted[n-1].Seconds()
	if n%2 == 1 {
		s.MedianLatencySeconds = sorted[n/2].Seconds()
	} else {
		s.MedianLatencySeconds = (sorted[n/2-1].Seconds() + sorted[n/2].Seconds()) / 2
	}
	return s
}
