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

// Package coordinator tracks service instances in a multi-replica
// deployment and load-balances requests across the healthy ones.
package coordinator

import "time"

// Status is the lifecycle state of a ServiceInstance.
type Status string

const (
	StatusStarting  Status = "STARTING"
	StatusHealthy   Status = "HEALTHY"
	StatusUnhealthy Status = "UNHEALTHY"
	StatusDraining  Status = "DRAINING"
	StatusStopped   Status = "STOPPED"
)

// ServiceInstance is a single mediator replica known to the registry.
type ServiceInstance struct {
	InstanceID     string
	Address        string // host:port
	Status         Status
	Weight         int
	LastHeartbeat  time.Time
	FailureCount   int
	ActiveConns    int
}

// Strategy selects which load-balancing algorithm to use.
type Strategy string

const (
	StrategyRoundRobin         Strategy = "ROUND_ROBIN"
	StrategyWeightedRoundRobin Strategy = "WEIGHTED_ROUND_ROBIN"
	StrategyRandom             Strategy = "RANDOM"
	StrategyWeightedRandom     Strategy = "WEIGHTED_RANDOM"
	StrategyLeastConnections   Strategy = "LEAST_CONNECTIONS"
)
