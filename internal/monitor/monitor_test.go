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

package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_EmptyIsZeroValue(t *testing.T) {
	m := New(1000, nil)
	agg := m.Aggregate()
	assert.Equal(t, 0, agg.Count)
	assert.Zero(t, agg.AverageMs)
}

func TestAggregate_ComputesAverageAndPercentiles(t *testing.T) {
	m := New(1000, nil)
	start := time.Now()
	for _, ms := range []int{10, 20, 30, 40, 50} {
		m.EndQuery(QueryMetrics{
			Start: start,
			End:   start.Add(time.Duration(ms) * time.Millisecond),
		})
	}

	agg := m.Aggregate()
	require.Equal(t, 5, agg.Count)
	assert.InDelta(t, 30.0, agg.AverageMs, 0.01)
	assert.InDelta(t, 30.0, agg.P50Ms, 0.01)
	assert.InDelta(t, 50.0, agg.P99Ms, 0.01)
}

func TestAggregate_TracksCacheHitRate(t *testing.T) {
	m := New(1000, nil)
	start := time.Now()
	m.EndQuery(QueryMetrics{Start: start, End: start.Add(time.Millisecond), CacheHit: true})
	m.EndQuery(QueryMetrics{Start: start, End: start.Add(time.Millisecond), CacheHit: false})
	m.EndQuery(QueryMetrics{Start: start, End: start.Add(time.Millisecond), CacheHit: false})

	agg := m.Aggregate()
	assert.InDelta(t, 1.0/3.0, agg.CacheHitRate, 1e-9)
}

func TestAggregate_CountsSlowQueries(t *testing.T) {
	m := New(25, nil)
	start := time.Now()
	m.EndQuery(QueryMetrics{Start: start, End: start.Add(10 * time.Millisecond)})
	m.EndQuery(QueryMetrics{Start: start, End: start.Add(50 * time.Millisecond)})

	agg := m.Aggregate()
	assert.Equal(t, 1, agg.SlowQueryCount)
}

func TestQueryMetrics_TotalMs(t *testing.T) {
	start := time.Now()
	qm := QueryMetrics{Start: start, End: start.Add(125 * time.Millisecond)}
	assert.InDelta(t, 125.0, qm.TotalMs(), 0.01)
}
