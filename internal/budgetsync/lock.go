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
	"time"

	"github.com/go-redis/redis/v8"
)

const lockPollInterval = 25 * time.Millisecond

// releaseScript deletes the lock key only if it still holds the caller's
// value, so an instance never frees a lock another instance has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Locker is a per-user advisory TTL lock backed by Redis SETNX semantics.
type Locker struct {
	client     *redis.Client
	instanceID string
	lockTTL    time.Duration
}

// NewLocker builds a Locker. instanceID identifies this process as the lock
// holder; lockTTL bounds how long a crashed holder can block others.
func NewLocker(client *redis.Client, instanceID string, lockTTL time.Duration) *Locker {
	return &Locker{client: client, instanceID: instanceID, lockTTL: lockTTL}
}

func lockKey(userID string) string {
	return "budgetlock:" + userID
}

// Acquire polls on a short interval until the lock is obtained or timeout
// elapses, returning false on timeout.
func (l *Locker) Acquire(ctx context.Context, userID string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.client.SetNX(ctx, lockKey(userID), l.instanceID, l.lockTTL).Result()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Release frees the lock only if this instance still holds it.
func (l *Locker) Release(ctx context.Context, userID string) error {
	return releaseScript.Run(ctx, l.client, []string{lockKey(userID)}, l.instanceID).Err()
}
