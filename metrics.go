package molgeo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    matchCounter   prometheus.Counter
//	    matchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordMatch(lhs, rhs, pairs, truncated int, duration time.Duration, err error) {
//	    p.matchCounter.Inc()
//	    p.matchHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordReorder is called after each reorder.
	// grid reports whether the grid+octree path ran.
	RecordReorder(atoms int, grid bool, duration time.Duration, err error)

	// RecordMatch is called after each match. pairs is the number of
	// returned neighbor entries, truncated the number of capped lists.
	RecordMatch(lhs, rhs, pairs, truncated int, duration time.Duration, err error)

	// RecordConnectivity is called after each connectivity map build.
	RecordConnectivity(atoms, bonds, overflowed int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordReorder(int, bool, time.Duration, error)          {}
func (NoopMetricsCollector) RecordMatch(int, int, int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordConnectivity(int, int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReorderCount           atomic.Int64
	ReorderGridCount       atomic.Int64
	ReorderErrors          atomic.Int64
	ReorderAtoms           atomic.Int64
	ReorderTotalNanos      atomic.Int64
	MatchCount             atomic.Int64
	MatchErrors            atomic.Int64
	MatchPairs             atomic.Int64
	MatchTruncated         atomic.Int64
	MatchTotalNanos        atomic.Int64
	ConnectivityCount      atomic.Int64
	ConnectivityErrors     atomic.Int64
	ConnectivityBonds      atomic.Int64
	ConnectivityOverflowed atomic.Int64
}

// RecordReorder implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReorder(atoms int, grid bool, duration time.Duration, err error) {
	b.ReorderCount.Add(1)
	if err != nil {
		b.ReorderErrors.Add(1)
		return
	}
	if grid {
		b.ReorderGridCount.Add(1)
	}
	b.ReorderAtoms.Add(int64(atoms))
	b.ReorderTotalNanos.Add(duration.Nanoseconds())
}

// RecordMatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMatch(lhs, rhs, pairs, truncated int, duration time.Duration, err error) {
	b.MatchCount.Add(1)
	if err != nil {
		b.MatchErrors.Add(1)
		return
	}
	b.MatchPairs.Add(int64(pairs))
	b.MatchTruncated.Add(int64(truncated))
	b.MatchTotalNanos.Add(duration.Nanoseconds())
}

// RecordConnectivity implements MetricsCollector.
func (b *BasicMetricsCollector) RecordConnectivity(atoms, bonds, overflowed int, duration time.Duration, err error) {
	b.ConnectivityCount.Add(1)
	if err != nil {
		b.ConnectivityErrors.Add(1)
		return
	}
	b.ConnectivityBonds.Add(int64(bonds))
	b.ConnectivityOverflowed.Add(int64(overflowed))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReorderCount:           b.ReorderCount.Load(),
		ReorderGridCount:       b.ReorderGridCount.Load(),
		ReorderErrors:          b.ReorderErrors.Load(),
		ReorderAtoms:           b.ReorderAtoms.Load(),
		ReorderAvgNanos:        avg(b.ReorderTotalNanos.Load(), b.ReorderCount.Load()-b.ReorderErrors.Load()),
		MatchCount:             b.MatchCount.Load(),
		MatchErrors:            b.MatchErrors.Load(),
		MatchPairs:             b.MatchPairs.Load(),
		MatchTruncated:         b.MatchTruncated.Load(),
		MatchAvgNanos:          avg(b.MatchTotalNanos.Load(), b.MatchCount.Load()-b.MatchErrors.Load()),
		ConnectivityCount:      b.ConnectivityCount.Load(),
		ConnectivityErrors:     b.ConnectivityErrors.Load(),
		ConnectivityBonds:      b.ConnectivityBonds.Load(),
		ConnectivityOverflowed: b.ConnectivityOverflowed.Load(),
	}
}

func avg(total, count int64) int64 {
	if count <= 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReorderCount           int64
	ReorderGridCount       int64
	ReorderErrors          int64
	ReorderAtoms           int64
	ReorderAvgNanos        int64
	MatchCount             int64
	MatchErrors            int64
	MatchPairs             int64
	MatchTruncated         int64
	MatchAvgNanos          int64
	ConnectivityCount      int64
	ConnectivityErrors     int64
	ConnectivityBonds      int64
	ConnectivityOverflowed int64
}
