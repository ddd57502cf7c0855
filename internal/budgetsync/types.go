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

// Package budgetsync reconciles per-user budget state across multiple
// mediator instances sharing a Redis-backed advisory lock.
package budgetsync

import "time"

// Op is the kind of change a SyncOperation records.
type Op string

const (
	OpConsume Op = "consume"
	OpReset   Op = "reset"
)

// State is one instance's local view of a user's budget (spec BudgetState).
type State struct {
	UserID      string
	Total       float64
	Consumed    float64
	Version     uint64
	LastUpdated time.Time
}

// Remaining returns the unconsumed epsilon.
func (s State) Remaining() float64 {
	return s.Total - s.Consumed
}

// SyncOperation is a pending change destined for cross-instance delivery.
type SyncOperation struct {
	OperationID    string
	UserID         string
	Op             Op
	Amount         float64
	SourceInstance string
	Timestamp      time.Time
}
