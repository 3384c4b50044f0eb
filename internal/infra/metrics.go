package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	pricings     atomic.Uint64
	cacheHits    atomic.Uint64
	cacheMisses  atomic.Uint64
	errorsTotal  atomic.Uint64
	repricings   atomic.Uint64
	hedgeActions atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	feedConnected     atomic.Int32 // 1 = connected
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordPricing records one completed valuation with its latency.
func (m *Metrics) RecordPricing(latency time.Duration) {
	m.pricings.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

// RecordCacheHit records a valuation served from the pricing cache.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a cacheable valuation that had to be computed.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// RecordRepricing records one full book revaluation by the engine.
func (m *Metrics) RecordRepricing() {
	m.repricings.Add(1)
}

// RecordHedgeAction records a hedge emitted by the strategy.
func (m *Metrics) RecordHedgeAction() {
	m.hedgeActions.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// SetFeedConnected sets the spot feed state.
func (m *Metrics) SetFeedConnected(ok bool) {
	if ok {
		m.feedConnected.Store(1)
	} else {
		m.feedConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Pricings          uint64    `json:"pricings"`
	CacheHits         uint64    `json:"cache_hits"`
	CacheMisses       uint64    `json:"cache_misses"`
	ErrorsTotal       uint64    `json:"errors_total"`
	Repricings        uint64    `json:"repricings"`
	HedgeActions      uint64    `json:"hedge_actions"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	ActiveConnections int32     `json:"active_connections"`
	FeedConnected     bool      `json:"feed_connected"`
	Timestamp         time.Time `json:"timestamp"`
}

// HitRatio is cache hits over cacheable lookups, zero when nothing was looked up.
func (s MetricsSnapshot) HitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		Pricings:          m.pricings.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		Repricings:        m.repricings.Load(),
		HedgeActions:      m.hedgeActions.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		FeedConnected:     m.feedConnected.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.pricings.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.errorsTotal.Store(0)
	m.repricings.Store(0)
	m.hedgeActions.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
	m.feedConnected.Store(0)
}
