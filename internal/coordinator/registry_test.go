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

func TestRegister_StartsInStartingStatus(t *testing.T) {
	r := NewRegistry(time.Second, 3, time.Hour)
	r.Register("i1", "localhost:9001", 1)

	inst, ok := r.Get("i1")
	require.True(t, ok)
	assert.Equal(t, StatusStarting, inst.Status)
}

func TestHeartbeat_PromotesToHealthy(t *testing.T) {
	r := NewRegistry(time.Second, 3, time.Hour)
	r.Register("i1", "localhost:9001", 1)
	r.Heartbeat("i1")

	inst, _ := r.Get("i1")
	assert.Equal(t, StatusHealthy, inst.Status)
}

func TestCheckOnce_DemotesAfterMaxMissedHeartbeats(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, 2, time.Hour)
	r.Register("i1", "localhost:9001", 1)
	r.Heartbeat("i1")

	time.Sleep(20 * time.Millisecond)
	r.checkOnce()
	inst, _ := r.Get("i1")
	assert.Equal(t, StatusHealthy, inst.Status)
	assert.Equal(t, 1, inst.FailureCount)

	time.Sleep(20 * time.Millisecond)
	r.checkOnce()
	inst, _ = r.Get("i1")
	assert.Equal(t, StatusUnhealthy, inst.Status)
}

func TestHeartbeat_ResetsFailureCountAndRecovers(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, 1, time.Hour)
	r.Register("i1", "localhost:9001", 1)
	r.Heartbeat("i1")
	time.Sleep(20 * time.Millisecond)
	r.checkOnce()

	inst, _ := r.Get("i1")
	require.Equal(t, StatusUnhealthy, inst.Status)

	r.Heartbeat("i1")
	inst, _ = r.Get("i1")
	assert.Equal(t, StatusHealthy, inst.Status)
	assert.Equal(t, 0, inst.FailureCount)
}

func TestHealthy_ExcludesNonHealthyStatuses(t *testing.T) {
	r := NewRegistry(time.Second, 3, time.Hour)
	r.Register("i1", "a", 1)
	r.Register("i2", "b", 1)
	r.Heartbeat("i1")
	r.Drain("i2")

	healthy := r.Healthy()
	require.Len(t, healthy, 1)
	assert.Equal(t, "i1", healthy[0].InstanceID)
}

func TestRecordAndReleaseConnection(t *testing.T) {
	r := NewRegistry(time.Second, 3, time.Hour)
	r.Register("i1", "a", 1)
	r.RecordConnection("i1")
	r.RecordConnection("i1")
	r.ReleaseConnection("i1")

	inst, _ := r.Get("i1")
	assert.Equal(t, 1, inst.ActiveConns)
}

func TestStartStop_RunsHealthCheckLoop(t *testing.T) {
	r := NewRegistry(5*time.Millisecond, 1, 5*time.Millisecond)
	r.Register("i1", "a", 1)
	r.Heartbeat("i1")

	r.Start()
	time.Sleep(30 * time.Millisecond)
	r.Stop()

	inst, _ := r.Get("i1")
	assert.Equal(t, StatusUnhealthy, inst.Status)
}
