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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, instanceID string) *Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLocker(client, instanceID, time.Second)
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	l := newTestLocker(t, "instance-a")
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "user-1", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "user-1"))

	ok, err = l.Acquire(ctx, "user-1", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCoordinator_ConsumeRecordsPendingOperation(t *testing.T) {
	l := newTestLocker(t, "instance-a")
	c := NewCoordinator("instance-a", l, time.Second, time.Hour, nil)

	ok, err := c.Consume(context.Background(), "user-1", 0.5, 2.0)
	require.NoError(t, err)
	require.True(t, ok)

	state, found := c.State("user-1")
	require.True(t, found)
	require.Equal(t, 0.5, state.Consumed)
	require.Len(t, c.pending, 1)
}

func TestCoordinator_ApplyRemoteOperationIgnoresSelf(t *testing.T) {
	l := newTestLocker(t, "instance-a")
	c := NewCoordinator("instance-a", l, time.Second, time.Hour, nil)

	c.ApplyRemoteOperation(SyncOperation{UserID: "user-1", Op: OpConsume, Amount: 1.0, SourceInstance: "instance-a"})
	_, found := c.State("user-1")
	require.False(t, found)

	c.ApplyRemoteOperation(SyncOperation{UserID: "user-1", Op: OpConsume, Amount: 1.0, SourceInstance: "instance-b"})
	state, found := c.State("user-1")
	require.True(t, found)
	require.Equal(t, 1.0, state.Consumed)
}

func TestCoordinator_SyncStatePicksHigherVersion(t *testing.T) {
	l := newTestLocker(t, "instance-a")
	c := NewCoordinator("instance-a", l, time.Second, time.Hour, nil)

	c.ApplyRemoteOperation(SyncOperation{UserID: "user-1", Op: OpConsume, Amount: 1.0, SourceInstance: "instance-b"})

	c.SyncState(map[string]State{
		"user-1": {UserID: "user-1", Consumed: 5.0, Version: 10},
	})

	state, _ := c.State("user-1")
	require.Equal(t, 5.0, state.Consumed)
	require.Equal(t, uint64(10), state.Version)
}

func TestCoordinator_SyncStateTieBreaksOnLargerConsumed(t *testing.T) {
	l := newTestLocker(t, "instance-a")
	c := NewCoordinator("instance-a", l, time.Second, time.Hour, nil)

	c.ApplyRemoteOperation(SyncOperation{UserID: "user-1", Op: OpConsume, Amount: 1.0, SourceInstance: "instance-b"})
	local, _ := c.State("user-1")

	c.SyncState(map[string]State{
		"user-1": {UserID: "user-1", Consumed: 9.0, Version: local.Version},
	})

	state, _ := c.State("user-1")
	require.Equal(t, 9.0, state.Consumed)
}

func TestCoordinator_StartStop(t *testing.T) {
	l := newTestLocker(t, "instance-a")
	delivered := make(chan []SyncOperation, 1)
	c := NewCoordinator("instance-a", l, time.Second, 10*time.Millisecond, func(ops []SyncOperation) {
		delivered <- ops
	})

	_, err := c.Consume(context.Background(), "user-1", 0.5, 2.0)
	require.NoError(t, err)

	c.Start()
	defer c.Stop()

	select {
	case ops := <-delivered:
		require.Len(t, ops, 1)
	case <-time.After(time.Second):
		t.Fatal("expected pending operations to be delivered")
	}
}
