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
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilquery/mediator/internal/obslog"
)

const defaultResetKey = "default"

// Manager owns every user's Account and Transaction history, serialized
// under a single manager-wide lock (spec: simpler than per-user locks,
// upgrade permitted if contention matters).
type Manager struct {
	mu sync.Mutex

	accounts     map[string]*Account
	transactions map[string][]Transaction

	defaultBudget  float64
	roleBudgets    map[string]float64
	defaultReset   ResetSchedule

	log *obslog.Logger
}

// NewManager builds a Manager. roleBudgets maps role name to total epsilon;
// the literal key "default" is replaced by defaultBudget so lookups for
// unknown roles stay consistent with the fallback.
func NewManager(defaultBudget float64, roleBudgets map[string]float64, defaultReset ResetSchedule) *Manager {
	rb := make(map[string]float64, len(roleBudgets))
	for k, v := range roleBudgets {
		rb[k] = v
	}
	rb[defaultResetKey] = defaultBudget

	return &Manager{
		accounts:      make(map[string]*Account),
		transactions:  make(map[string][]Transaction),
		defaultBudget: defaultBudget,
		roleBudgets:   rb,
		defaultReset:  defaultReset,
		log:           obslog.New("budget"),
	}
}

// accountLocked returns (creating if necessary) the account for userID.
// Caller must hold m.mu.
func (m *Manager) accountLocked(userID, role string) *Account {
	acct, ok := m.accounts[userID]
	if ok {
		return acct
	}
	total := m.defaultBudget
	if role != "" {
		if b, ok := m.roleBudgets[role]; ok {
			total = b
		}
	}
	acct = &Account{
		UserID:      userID,
		TotalBudget: total,
		Role:        role,
		Reset:       m.defaultReset,
		LastReset:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
		Version:     1,
	}
	m.accounts[userID] = acct
	return acct
}

// resetIfDueLocked advances last_reset and zeroes consumed budget when the
// configured period has elapsed. The first observation of an account never
// triggers a reset (last_reset was just set to now).
func (m *Manager) resetIfDueLocked(acct *Account) {
	period := acct.Reset.Frequency.period()
	if period <= 0 {
		return
	}
	if time.Since(acct.LastReset) >= period {
		acct.ConsumedBudget = 0
		acct.LastReset = time.Now().UTC()
		acct.UpdatedAt = acct.LastReset
		acct.Version++
	}
}

// CheckBudget reports whether epsilon may be consumed without mutating state.
func (m *Manager) CheckBudget(userID string, role string, epsilon float64) CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.accountLocked(userID, role)
	m.resetIfDueLocked(acct)

	remaining := acct.Remaining()
	if remaining < epsilon {
		return CheckResult{
			Allowed:   false,
			Remaining: remaining,
			Requested: epsilon,
			Message:   "insufficient_budget",
		}
	}
	return CheckResult{Allowed: true, Remaining: remaining, Requested: epsilon}
}

// ConsumeBudget atomically debits epsilon if available, recording a
// Transaction keyed by a truncated hash of the normalized query. Returns
// false with no side effect when the account lacks sufficient remaining
// budget.
func (m *Manager) ConsumeBudget(userID, role string, epsilon float64, queryID, querySQL, mechanism string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.accountLocked(userID, role)
	m.resetIfDueLocked(acct)

	if acct.Remaining() < epsilon {
		return false
	}

	acct.ConsumedBudget += epsilon
	acct.UpdatedAt = time.Now().UTC()
	acct.Version++

	txn := Transaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		QueryID:         queryID,
		EpsilonConsumed: epsilon,
		Timestamp:       acct.UpdatedAt,
		QueryHash:       queryHash(querySQL),
		Mechanism:       mechanism,
	}
	m.transactions[userID] = append(m.transactions[userID], txn)

	m.log.Debug("consumed budget", map[string]any{"user_id": userID, "epsilon": epsilon, "remaining": acct.Remaining()})
	return true
}

// RefundBudget reverses a prior ConsumeBudget call, e.g. on executor failure
// where "no successful answer ⇒ no budget spent" must hold.
func (m *Manager) RefundBudget(userID string, epsilon float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[userID]
	if !ok {
		return
	}
	acct.ConsumedBudget -= epsilon
	if acct.ConsumedBudget < 0 {
		acct.ConsumedBudget = 0
	}
	acct.UpdatedAt = time.Now().UTC()
	acct.Version++
}

// ResetBudget zeroes consumed budget immediately, independent of schedule.
func (m *Manager) ResetBudget(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.accountLocked(userID, "")
	acct.ConsumedBudget = 0
	acct.LastReset = time.Now().UTC()
	acct.UpdatedAt = acct.LastReset
	acct.Version++
}

// SetBudget overrides the total epsilon budget for userID.
func (m *Manager) SetBudget(userID string, total float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.accountLocked(userID, "")
	acct.TotalBudget = total
	acct.UpdatedAt = time.Now().UTC()
	acct.Version++
}

// SetResetSchedule overrides userID's reset schedule.
func (m *Manager) SetResetSchedule(userID string, schedule ResetSchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.accountLocked(userID, "")
	acct.Reset = schedule
	acct.UpdatedAt = time.Now().UTC()
	acct.Version++
}

// GetBudgetStatus returns a snapshot of userID's account, applying
// reset-if-due first.
func (m *Manager) GetBudgetStatus(userID string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.accountLocked(userID, "")
	m.resetIfDueLocked(acct)

	return Status{
		UserID:         acct.UserID,
		TotalBudget:    acct.TotalBudget,
		ConsumedBudget: acct.ConsumedBudget,
		Remaining:      acct.Remaining(),
		Role:           acct.Role,
		LastReset:      acct.LastReset,
		Version:        acct.Version,
	}
}

// GetBudgetHistory returns up to limit Transactions for userID, newest first.
func (m *Manager) GetBudgetHistory(userID string, limit int) []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	txns := m.transactions[userID]
	out := make([]Transaction, 0, len(txns))
	for i := len(txns) - 1; i >= 0; i-- {
		out = append(out, txns[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func queryHash(sql string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(sql)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}
