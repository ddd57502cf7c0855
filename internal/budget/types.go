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

// Package budget tracks per-user differential-privacy epsilon budgets with
// scheduled resets and atomic check-and-consume semantics.
package budget

import "time"

// Frequency is how often a BudgetAccount's consumed epsilon resets to zero.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Never   Frequency = "NEVER"
)

func (f Frequency) period() time.Duration {
	switch f {
	case Daily:
		return 24 * time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	case Monthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// ResetSchedule configures when an account's consumed budget returns to zero.
type ResetSchedule struct {
	Frequency Frequency
	TZ        string
}

// Account is a single user's epsilon budget (spec BudgetAccount).
type Account struct {
	UserID         string
	TotalBudget    float64
	ConsumedBudget float64
	Role           string
	Reset          ResetSchedule
	LastReset      time.Time
	UpdatedAt      time.Time
	Version        uint64
}

// Remaining returns the unconsumed epsilon.
func (a *Account) Remaining() float64 {
	return a.TotalBudget - a.ConsumedBudget
}

// Transaction is one epsilon debit (spec BudgetTransaction). Append-only.
type Transaction struct {
	ID               string
	UserID           string
	QueryID          string
	EpsilonConsumed  float64
	Timestamp        time.Time
	QueryHash        string
	Mechanism        string
}

// CheckResult is the outcome of CheckBudget.
type CheckResult struct {
	Allowed   bool
	Remaining float64
	Requested float64
	Message   string
}

// Status is a point-in-time summary returned by GetBudgetStatus.
type Status struct {
	UserID         string
	TotalBudget    float64
	ConsumedBudget float64
	Remaining      float64
	Role           string
	LastReset      time.Time
	Version        uint64
}
