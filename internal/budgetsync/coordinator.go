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

package budgetsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilquery/mediator/internal/obslog"
)

// DeliverFunc is invoked with the pending operations buffer at each sync
// tick; it is responsible for cross-instance delivery (e.g. publishing to
// a shared Redis channel).
type DeliverFunc func(ops []SyncOperation)

// Coordinator holds this instance's local view of every known user's
// budget state and reconciles it against remote instances.
type Coordinator struct {
	instanceID string
	locker     *Locker
	lockTimeout time.Duration

	mu      sync.Mutex
	states  map[string]State
	pending []SyncOperation

	deliver      DeliverFunc
	syncInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}

	log *obslog.Logger
}

// NewCoordinator builds a Coordinator for this instance.
func NewCoordinator(instanceID string, locker *Locker, lockTimeout, syncInterval time.Duration, deliver DeliverFunc) *Coordinator {
	return &Coordinator{
		instanceID:   instanceID,
		locker:       locker,
		lockTimeout:  lockTimeout,
		states:       make(map[string]State),
		deliver:      deliver,
		syncInterval: syncInterval,
		log:          obslog.New("budgetsync"),
	}
}

func (c *Coordinator) stateLocked(userID string, defaultTotal float64) State {
	s, ok := c.states[userID]
	if !ok {
		s = State{UserID: userID, Total: defaultTotal, Version: 1, LastUpdated: time.Now().UTC()}
		c.states[userID] = s
	}
	return s
}

// Consume acquires the user's lock, debits amount from the local state, and
// records a pending SyncOperation for delivery. Returns false if the lock
// could not be acquired or the local state lacks sufficient remaining
// budget.
func (c *Coordinator) Consume(ctx context.Context, userID string, amount, defaultTotal float64) (bool, error) {
	ok, err := c.locker.Acquire(ctx, userID, c.lockTimeout)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer c.locker.Release(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stateLocked(userID, defaultTotal)
	if s.Remaining() < amount {
		return false, nil
	}
	s.Consumed += amount
	s.Version++
	s.LastUpdated = time.Now().UTC()
	c.states[userID] = s

	c.pending = append(c.pending, SyncOperation{
		OperationID:    uuid.NewString(),
		UserID:         userID,
		Op:             OpConsume,
		Amount:         amount,
		SourceInstance: c.instanceID,
		Timestamp:      s.LastUpdated,
	})
	return true, nil
}

// Reset acquires the user's lock and zeroes local consumed budget, recording
// a pending SyncOperation.
func (c *Coordinator) Reset(ctx context.Context, userID string) error {
	ok, err := c.locker.Acquire(ctx, userID, c.lockTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer c.locker.Release(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stateLocked(userID, 0)
	s.Consumed = 0
	s.Version++
	s.LastUpdated = time.Now().UTC()
	c.states[userID] = s

	c.pending = append(c.pending, SyncOperation{
		OperationID:    uuid.NewString(),
		UserID:         userID,
		Op:             OpReset,
		SourceInstance: c.instanceID,
		Timestamp:      s.LastUpdated,
	})
	return nil
}

// ApplyRemoteOperation applies an operation originating from another
// instance. Operations this instance produced are ignored.
func (c *Coordinator) ApplyRemoteOperation(op SyncOperation) {
	if op.SourceInstance == c.instanceID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stateLocked(op.UserID, 0)
	switch op.Op {
	case OpConsume:
		s.Consumed += op.Amount
	case OpReset:
		s.Consumed = 0
	}
	s.Version++
	s.LastUpdated = time.Now().UTC()
	c.states[op.UserID] = s
}

// SyncState reconciles remote instance views with the local one. For each
// user, the state with the higher version wins; ties break toward the
// larger consumed value (never under-report consumption).
func (c *Coordinator) SyncState(remoteStates map[string]State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for userID, remote := range remoteStates {
		local, ok := c.states[userID]
		if !ok {
			c.states[userID] = remote
			continue
		}
		if remote.Version > local.Version {
			c.states[userID] = remote
		} else if remote.Version == local.Version && remote.Consumed > local.Consumed {
			c.states[userID] = remote
		}
	}
}

// State returns the local view of a user's budget state.
func (c *Coordinator) State(userID string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[userID]
	return s, ok
}

// Start runs the background sync loop that periodically flushes the
// pending-operations buffer to the deliver callback.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.stopCh != nil {
		c.mu.Unlock()
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(c.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.flush()
			}
		}
	}()
}

func (c *Coordinator) flush() {
	c.mu.Lock()
	ops := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(ops) == 0 || c.deliver == nil {
		return
	}
	c.deliver(ops)
}

// Stop signals the sync loop to halt and joins it with a bounded deadline.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	stopCh := c.stopCh
	doneCh := c.doneCh
	c.stopCh = nil
	c.doneCh = nil
	c.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		c.log.Warn("sync loop did not stop within deadline", nil)
	}
}
