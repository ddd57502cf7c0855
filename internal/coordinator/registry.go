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
	"sort"
	"sync"
	"time"

	"github.com/veilquery/mediator/internal/obslog"
)

// Registry tracks ServiceInstances and their heartbeats, demoting an
// instance to UNHEALTHY after maxFailures consecutive missed heartbeats.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*ServiceInstance

	healthCheckTimeout time.Duration
	maxFailures        int

	checkInterval time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}

	log *obslog.Logger
}

// NewRegistry builds a Registry. healthCheckTimeout is how long since the
// last heartbeat before a check counts as missed; maxFailures is how many
// consecutive missed checks demote an instance to UNHEALTHY.
func NewRegistry(healthCheckTimeout time.Duration, maxFailures int, checkInterval time.Duration) *Registry {
	return &Registry{
		instances:          make(map[string]*ServiceInstance),
		healthCheckTimeout: healthCheckTimeout,
		maxFailures:        maxFailures,
		checkInterval:      checkInterval,
		log:                obslog.New("coordinator"),
	}
}

// Register adds or replaces a ServiceInstance, starting it in STARTING
// status with a fresh heartbeat.
func (r *Registry) Register(instanceID, address string, weight int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[instanceID] = &ServiceInstance{
		InstanceID:    instanceID,
		Address:       address,
		Status:        StatusStarting,
		Weight:        weight,
		LastHeartbeat: time.Now(),
	}
}

// Deregister removes an instance from the registry.
func (r *Registry) Deregister(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, instanceID)
}

// Heartbeat records a liveness ping, resetting the failure count and
// promoting the instance to HEALTHY if it was previously STARTING or
// UNHEALTHY.
func (r *Registry) Heartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[instanceID]
	if !ok {
		return
	}
	inst.LastHeartbeat = time.Now()
	inst.FailureCount = 0
	if inst.Status == StatusStarting || inst.Status == StatusUnhealthy {
		inst.Status = StatusHealthy
	}
}

// Drain marks an instance as DRAINING so the load balancer stops routing
// new requests to it while in-flight connections finish.
func (r *Registry) Drain(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[instanceID]; ok {
		inst.Status = StatusDraining
	}
}

// Get returns a copy of the named instance's current state.
func (r *Registry) Get(instanceID string) (ServiceInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[instanceID]
	if !ok {
		return ServiceInstance{}, false
	}
	return *inst, true
}

// Healthy returns copies of all HEALTHY instances, sorted by InstanceID so
// that the round-robin strategies see a stable order between calls.
func (r *Registry) Healthy() []ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ServiceInstance
	for _, inst := range r.instances {
		if inst.Status == StatusHealthy {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// RecordConnection increments an instance's active connection count, used
// by the LEAST_CONNECTIONS strategy.
func (r *Registry) RecordConnection(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[instanceID]; ok {
		inst.ActiveConns++
	}
}

// ReleaseConnection decrements an instance's active connection count.
func (r *Registry) ReleaseConnection(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[instanceID]; ok && inst.ActiveConns > 0 {
		inst.ActiveConns--
	}
}

// checkOnce evaluates every instance's heartbeat age, demoting to
// UNHEALTHY after maxFailures consecutive misses.
func (r *Registry) checkOnce() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, inst := range r.instances {
		if inst.Status == StatusStopped {
			continue
		}
		if now.Sub(inst.LastHeartbeat) > r.healthCheckTimeout {
			inst.FailureCount++
			if inst.FailureCount >= r.maxFailures {
				inst.Status = StatusUnhealthy
			}
		}
	}
}

// Start launches the background health-check loop.
func (r *Registry) Start() {
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.checkOnce()
			}
		}
	}()
}

// Stop halts the background loop, waiting up to 2 seconds for it to exit.
func (r *Registry) Stop() {
	if r.stopCh == nil {
		return
	}
	close(r.stopCh)
	select {
	case <-r.doneCh:
	case <-time.After(2 * time.Second):
		r.log.Warn("health check loop did not exit within deadline", nil)
	}
}
