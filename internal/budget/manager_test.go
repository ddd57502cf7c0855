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

package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckBudget_NewAccountUsesDefault(t *testing.T) {
	m := NewManager(2.0, nil, ResetSchedule{Frequency: Never})
	res := m.CheckBudget("alice", "", 1.0)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2.0, res.Remaining)
}

func TestCheckBudget_RoleOverridesDefault(t *testing.T) {
	m := NewManager(2.0, map[string]float64{"analyst": 5.0}, ResetSchedule{Frequency: Never})
	res := m.CheckBudget("bob", "analyst", 1.0)
	assert.True(t, res.Allowed)
	assert.Equal(t, 5.0, res.Remaining)
}

func TestConsumeBudget_DeniesWhenInsufficient(t *testing.T) {
	m := NewManager(1.0, nil, ResetSchedule{Frequency: Never})
	assert.True(t, m.ConsumeBudget("carol", "", 0.8, "q1", "SELECT 1", "laplace"))
	assert.False(t, m.ConsumeBudget("carol", "", 0.5, "q2", "SELECT 1", "laplace"))

	status := m.GetBudgetStatus("carol")
	assert.InDelta(t, 0.8, status.ConsumedBudget, 1e-9)
}

func TestConsumeBudget_RecordsTransactionHistory(t *testing.T) {
	m := NewManager(5.0, nil, ResetSchedule{Frequency: Never})
	require := assert.New(t)
	m.ConsumeBudget("dave", "", 1.0, "q1", "SELECT COUNT(*) FROM orders", "laplace")
	m.ConsumeBudget("dave", "", 0.5, "q2", "SELECT COUNT(*) FROM orders", "laplace")

	history := m.GetBudgetHistory("dave", 10)
	require.Len(history, 2)
	require.Equal("q2", history[0].QueryID)
	require.Equal("q1", history[1].QueryID)
	require.Len(history[0].QueryHash, 16)
}

func TestRefundBudget_ReversesConsumption(t *testing.T) {
	m := NewManager(2.0, nil, ResetSchedule{Frequency: Never})
	m.ConsumeBudget("erin", "", 1.0, "q1", "SELECT 1", "laplace")
	m.RefundBudget("erin", 1.0)

	status := m.GetBudgetStatus("erin")
	assert.InDelta(t, 0.0, status.ConsumedBudget, 1e-9)
}

func TestResetIfDue_FirstObservationDoesNotReset(t *testing.T) {
	m := NewManager(1.0, nil, ResetSchedule{Frequency: Daily})
	status := m.GetBudgetStatus("frank")
	assert.InDelta(t, 0.0, status.ConsumedBudget, 1e-9)
}

func TestResetIfDue_ResetsAfterPeriodElapses(t *testing.T) {
	m := NewManager(1.0, nil, ResetSchedule{Frequency: Daily})
	m.ConsumeBudget("grace", "", 0.9, "q1", "SELECT 1", "laplace")

	m.mu.Lock()
	m.accounts["grace"].LastReset = time.Now().Add(-25 * time.Hour)
	m.mu.Unlock()

	status := m.GetBudgetStatus("grace")
	assert.InDelta(t, 0.0, status.ConsumedBudget, 1e-9)
}

func TestSetBudget_OverridesTotal(t *testing.T) {
	m := NewManager(1.0, nil, ResetSchedule{Frequency: Never})
	m.SetBudget("henry", 10.0)
	assert.Equal(t, 10.0, m.GetBudgetStatus("henry").TotalBudget)
}
