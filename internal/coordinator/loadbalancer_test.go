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

package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthyRegistry(t *testing.T, instances map[string]int) *Registry {
	t.Helper()
	r := NewRegistry(time.Second, 3, time.Hour)
	for id, weight := range instances {
		r.Register(id, id+":9000", weight)
		r.Heartbeat(id)
	}
	return r
}

func TestSelect_NoHealthyInstancesReturnsFalse(t *testing.T) {
	r := NewRegistry(time.Second, 3, time.Hour)
	lb := NewLoadBalancer(r, StrategyRoundRobin)
	_, ok := lb.Select()
	assert.False(t, ok)
}

func TestSelect_RoundRobinCyclesEvenly(t *testing.T) {
	r := newHealthyRegistry(t, map[string]int{"a": 1, "b": 1})
	lb := NewLoadBalancer(r, StrategyRoundRobin)

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		inst, ok := lb.Select()
		require.True(t, ok)
		seen[inst.InstanceID]++
	}
	assert.Equal(t, 2, seen["a"])
	assert.Equal(t, 2, seen["b"])
}

func TestSelect_WeightedRoundRobinFavorsHigherWeight(t *testing.T) {
	r := newHealthyRegistry(t, map[string]int{"a": 3, "b": 1})
	lb := NewLoadBalancer(r, StrategyWeightedRoundRobin)

	seen := map[string]int{}
	for i := 0; i < 8; i++ {
		inst, _ := lb.Select()
		seen[inst.InstanceID]++
	}
	assert.Equal(t, 6, seen["a"])
	assert.Equal(t, 2, seen["b"])
}

func TestSelect_LeastConnectionsPicksLowest(t *testing.T) {
	r := newHealthyRegistry(t, map[string]int{"a": 1, "b": 1})
	r.RecordConnection("a")
	r.RecordConnection("a")
	r.RecordConnection("b")

	lb := NewLoadBalancer(r, StrategyLeastConnections)
	inst, ok := lb.Select()
	require.True(t, ok)
	assert.Equal(t, "b", inst.InstanceID)
}

func TestSelect_SkipsUnhealthyInstances(t *testing.T) {
	r := NewRegistry(time.Second, 3, time.Hour)
	r.Register("a", "a:9000", 1)
	r.Register("b", "b:9000", 1)
	r.Heartbeat("a")

	lb := NewLoadBalancer(r, StrategyRandom)
	for i := 0; i < 10; i++ {
		inst, ok := lb.Select()
		require.True(t, ok)
		assert.Equal(t, "a", inst.InstanceID)
	}
}

func TestSelect_WeightedRandomOnlySelectsHealthy(t *testing.T) {
	r := newHealthyRegistry(t, map[string]int{"a": 5, "b": 5})
	lb := NewLoadBalancer(r, StrategyWeightedRandom)

	for i := 0; i < 10; i++ {
		inst, ok := lb.Select()
		require.True(t, ok)
		assert.Contains(t, []string{"a", "b"}, inst.InstanceID)
	}
}
