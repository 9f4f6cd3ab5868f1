// Package metrics aggregates request outcomes and summarizes them.
//
// An [Aggregator] is created fresh for every run and receives outcomes from
// many goroutines:
//
//	agg := metrics.NewAggregator()
//	agg.Record(outcome)
//
// Only responses with a status below 400 contribute latency samples. Status
// codes >= 400, transport errors and timeouts all increment the failure count.
//
// Once every request has completed, [Aggregator.Snapshot] returns a stable
// copy and [Summarize] computes mean, median, min and max in seconds:
//
//	snap := agg.Snapshot()
//	summary := metrics.Summarize(snap.Samples, snap.Failures, issued)
//
// [Aggregator.Summary] does the same and additionally fills P90/P99 from an
// HDR histogram, per-reason failure counts and the status code breakdown.
package metrics
