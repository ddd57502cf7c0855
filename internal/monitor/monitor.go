// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package monitor tracks per-phase query timings and exposes aggregate
// latency percentiles, cache hit rate, and slow-query counts.
package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueryMetrics accumulates the phase timings for a single request.
type QueryMetrics struct {
	QueryID       string
	Start         time.Time
	End           time.Time
	AnalysisMs    float64
	PolicyMs      float64
	ExecutionMs   float64
	PrivacyMs     float64
	CacheHit      bool
	ResultSize    int
	Error         bool
}

// TotalMs returns the elapsed wall time for the query.
func (m QueryMetrics) TotalMs() float64 {
	return float64(m.End.Sub(m.Start).Microseconds()) / 1000.0
}

// Monitor aggregates QueryMetrics across requests.
type Monitor struct {
	mu sync.Mutex

	totals       []float64
	cacheHits    int
	cacheMisses  int
	slowQueries  int
	slowThreshold float64

	requestDuration prometheus.Histogram
	cacheHitTotal   prometheus.Counter
	errorTotal      prometheus.Counter
}

// New builds a Monitor; slowThresholdMs queries with a longer total
// duration count toward SlowQueryCount. If registry is non-nil, Prometheus
// collectors are registered against it.
func New(slowThresholdMs float64, registry prometheus.Registerer) *Monitor {
	m := &Monitor{
		slowThreshold: slowThresholdMs,
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediator_query_duration_ms",
			Help:    "Total query processing time in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
		cacheHitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediator_cache_hits_total",
			Help: "Total query cache hits.",
		}),
		errorTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediator_query_errors_total",
			Help: "Total queries that ended in error.",
		}),
	}
	if registry != nil {
		registry.MustRegister(m.requestDuration, m.cacheHitTotal, m.errorTotal)
	}
	return m
}

// EndQuery finalizes metrics computed from start/end timestamps and records
// the request into both the in-process percentile buffer and Prometheus.
func (m *Monitor) EndQuery(qm QueryMetrics) {
	total := qm.TotalMs()

	m.mu.Lock()
	m.totals = append(m.totals, total)
	if qm.CacheHit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
	if total > m.slowThreshold {
		m.slowQueries++
	}
	m.mu.Unlock()

	m.requestDuration.Observe(total)
	if qm.CacheHit {
		m.cacheHitTotal.Inc()
	}
	if qm.Error {
		m.errorTotal.Inc()
	}
}

// Aggregate summarizes accumulated query metrics.
type Aggregate struct {
	Count         int
	AverageMs     float64
	P50Ms         float64
	P90Ms         float64
	P95Ms         float64
	P99Ms         float64
	CacheHitRate  float64
	SlowQueryCount int
}

// Aggregate computes percentile and rate statistics over all recorded
// queries.
func (m *Monitor) Aggregate() Aggregate {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.totals)
	if n == 0 {
		return Aggregate{}
	}

	sorted := append([]float64(nil), m.totals...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	hitRate := 0.0
	if total := m.cacheHits + m.cacheMisses; total > 0 {
		hitRate = float64(m.cacheHits) / float64(total)
	}

	return Aggregate{
		Count:          n,
		AverageMs:      sum / float64(n),
		P50Ms:          percentile(sorted, 0.50),
		P90Ms:          percentile(sorted, 0.90),
		P95Ms:          percentile(sorted, 0.95),
		P99Ms:          percentile(sorted, 0.99),
		CacheHitRate:   hitRate,
		SlowQueryCount: m.slowQueries,
	}
}

// percentile assumes sorted is non-empty and ascending. It returns the
// element at index floor(p*n), clamped to the last element.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
