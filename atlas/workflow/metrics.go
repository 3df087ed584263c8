package workflow

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MetricsCollector tracks search query counters and latencies.
type MetricsCollector struct {
	mu         sync.Mutex
	queryCount int64
	cacheHits  int64
	errorCount int64
	latencies  []float64 // milliseconds
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{latencies: make([]float64, 0, 1000)}
}

// RecordQuery records one search round trip.
func (mc *MetricsCollector) RecordQuery(duration time.Duration, cacheHit bool, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.queryCount++
	mc.latencies = append(mc.latencies, float64(duration)/float64(time.Millisecond))
	if cacheHit {
		mc.cacheHits++
	}
	if err != nil {
		mc.errorCount++
	}
}

// MetricsSnapshot is a point-in-time summary.
type MetricsSnapshot struct {
	QueryCount int64   `json:"query_count"`
	CacheHits  int64   `json:"cache_hits"`
	ErrorCount int64   `json:"error_count"`
	MeanMs     float64 `json:"mean_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
}

// Snapshot summarizes the collected latencies.
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	snap := MetricsSnapshot{
		QueryCount: mc.queryCount,
		CacheHits:  mc.cacheHits,
		ErrorCount: mc.errorCount,
	}
	if len(mc.latencies) == 0 {
		return snap
	}

	sorted := make([]float64, len(mc.latencies))
	copy(sorted, mc.latencies)
	sort.Float64s(sorted)

	snap.MeanMs = stat.Mean(sorted, nil)
	snap.P50Ms = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	snap.P95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	snap.P99Ms = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	return snap
}
