package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/pacefire/internal/executor"
)

// Aggregator collects the outcomes of one run. It is safe for concurrent use;
// a single mutex guards all counters so every Record is applied atomically.
type Aggregator struct {
	mu          sync.Mutex
	samples     []time.Duration
	failures    int64
	transport   int64
	timeouts    int64
	application int64
	statusCodes map[int]int64
	causes      map[string]int64
	hist        *hdrhistogram.Histogram
}

// Snapshot is a point-in-time copy of the collected results.
type Snapshot struct {
	Samples  []time.Duration
	Failures int64
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		statusCodes: make(map[int]int64),
		causes:      make(map[string]int64),
		// 1µs to 60s with 3 significant figures.
		hist: hdrhistogram.New(1, 60_000_000, 3),
	}
}

// Record adds one outcome. Responses with status >= 400 count as failures and
// their latency is discarded.
func (a *Aggregator) Record(o executor.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if o.Kind == executor.OutcomeFailure {
		a.failures++
		switch o.Reason {
		case executor.ReasonTimeout:
			a.timeouts++
		default:
			a.transport++
		}
		a.causes[FailureLabel(o)]++
		return
	}

	a.statusCodes[o.StatusCode]++
	if o.StatusCode >= 400 {
		a.failures++
		a.application++
		return
	}

	a.samples = append(a.samples, o.Latency)
	us := o.Latency.Microseconds()
	if us < a.hist.LowestTrackableValue() {
		us = a.hist.LowestTrackableValue()
	}
	if us > a.hist.HighestTrackableValue() {
		us = a.hist.HighestTrackableValue()
	}
	_ = a.hist.RecordValue(us)
}

// Counts returns the live success and failure counts.
func (a *Aggregator) Counts() (successes, failures int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(len(a.samples)), a.failures
}

// Snapshot copies the samples and failure count. Mutating the result does not
// affect the Aggregator.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	samples := make([]time.Duration, len(a.samples))
	copy(samples, a.samples)
	return Snapshot{Samples: samples, Failures: a.failures}
}

// Summary computes the full report: the basic statistics from Summarize plus
// percentiles, per-reason failure counts and throughput.
func (a *Aggregator) Summary(totalIssued int64, elapsed time.Duration) Summary {
	snap := a.Snapshot()
	s := Summarize(snap.Samples, snap.Failures, totalIssued)

	a.mu.Lock()
	defer a.mu.Unlock()

	s.TransportFailures = a.transport
	s.TimeoutFailures = a.timeouts
	s.ApplicationErrors = a.application
	if a.hist.TotalCount() > 0 {
		s.P90LatencySeconds = float64(a.hist.ValueAtQuantile(90)) / 1e6
		s.P99LatencySeconds = float64(a.hist.ValueAtQuantile(99)) / 1e6
	}
	if len(a.statusCodes) > 0 {
		s.StatusCodes = make(map[string]int64, len(a.statusCodes))
		for code, n := range a.statusCodes {
			s.StatusCodes[strconv.Itoa(code)] = n
		}
	}
	if len(a.causes) > 0 {
		s.Errors = make(map[string]int64, len(a.causes))
		for k, v := range a.causes {
			s.Errors[k] = v
		}
	}

	s.Elapsed = elapsed
	s.ElapsedSeconds = elapsed.Seconds()
	if elapsed > 0 && totalIssued > 0 {
		s.RequestsPerSec = float64(totalIssued) / elapsed.Seconds()
	}
	return s
}
