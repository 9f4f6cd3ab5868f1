package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/pacefire/internal/metrics"
	"github.com/torosent/pacefire/internal/threshold"
)

// Report is the machine-readable form of a run's results.
type Report struct {
	metrics.Summary `yaml:",inline"`
	Thresholds      []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s metrics.Summary, results []threshold.Result) {
	fmt.Fprintf(w, "Total Requests: %d\n", s.TotalIssued)
	fmt.Fprintf(w, "Successful Requests: %d\n", s.SuccessCount)
	fmt.Fprintf(w, "Failed Requests: %d\n", s.FailureCount)

	if !s.HasSuccessfulSamples {
		fmt.Fprintln(w, "No successful requests.")
	} else {
		fmt.Fprintf(w, "Average Latency: %.2f seconds\n", s.MeanLatencySeconds)
		fmt.Fprintf(w, "Min Latency: %.2f seconds\n", s.MinLatencySeconds)
		fmt.Fprintf(w, "Max Latency: %.2f seconds\n", s.MaxLatencySeconds)
		fmt.Fprintf(w, "Median Latency: %.2f seconds\n", s.MedianLatencySeconds)
		fmt.Fprintf(w, "P90 Latency: %.2f seconds\n", s.P90LatencySeconds)
		fmt.Fprintf(w, "P99 Latency: %.2f seconds\n", s.P99LatencySeconds)
	}

	fmt.Fprintf(w, "\nDuration: %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec: %.2f\n", s.RequestsPerSec)
	if s.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", s.RunID)
	}

	if s.FailureCount > 0 {
		fmt.Fprintln(w, "\nFailures:")
		fmt.Fprintf(w, "  HTTP status >= 400: %d\n", s.ApplicationErrors)
		fmt.Fprintf(w, "  Timeouts:           %d\n", s.TimeoutFailures)
		fmt.Fprintf(w, "  Transport errors:   %d\n", s.TransportFailures)
		if len(s.Errors) > 0 {
			names := make([]string, 0, len(s.Errors))
			for name := range s.Errors {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				if s.Errors[names[i]] == s.Errors[names[j]] {
					return names[i] < names[j]
				}
				return s.Errors[names[i]] > s.Errors[names[j]]
			})
			for _, name := range names {
				fmt.Fprintf(w, "    %s: %d\n", name, s.Errors[name])
			}
		}
	}

	if rows := metrics.FlattenStatusBuckets(s.StatusCodes); len(rows) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %s: %d\n", row.Code, row.Count)
		}
	}

	if len(results) > 0 {
		fmt.Fprintln(w)
		PrintThresholdResults(w, results)
	}
}

// PrintThresholdResults writes one line per threshold and an overall verdict.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	fmt.Fprintln(w, "Thresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	if threshold.AllPassed(results) {
		fmt.Fprintln(w, "All thresholds passed.")
		return
	}
	failed := make([]string, 0, len(results))
	for _, r := range results {
		if !r.Pass {
			failed = append(failed, r.Raw)
		}
	}
	fmt.Fprintf(w, "Thresholds failed: %s\n", strings.Join(failed, ", "))
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s metrics.Summary, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Report{Summary: s, Thresholds: results})
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, s metrics.Summary, results []threshold.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Report{Summary: s, Thresholds: results}); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	return enc.Close()
}
