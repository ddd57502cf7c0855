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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet_RoundTrips(t *testing.T) {
	c := New(10, 1<<20)
	c.Set("k1", []byte("v1"), 0)
	v, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))
}

func TestGet_MissingKey(t *testing.T) {
	c := New(10, 1<<20)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestSet_EvictsLeastRecentlyUsedWhenOverEntryCap(t *testing.T) {
	c := New(2, 1<<20)
	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)
	c.Get("a")
	c.Set("c", []byte("3"), 0)

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestGet_ExpiredEntryIsMiss(t *testing.T) {
	c := New(10, 1<<20)
	c.Set("k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidate_RemovesKey(t *testing.T) {
	c := New(10, 1<<20)
	c.Set("k", []byte("v"), 0)
	c.Invalidate("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidateAll_ClearsEverything(t *testing.T) {
	c := New(10, 1<<20)
	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)
	c.InvalidateAll()

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	assert.False(t, okA)
	assert.False(t, okB)
}

func TestGetOrCompute_CachesThunkResult(t *testing.T) {
	c := New(10, 1<<20)
	calls := 0
	thunk := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	v1, err := c.GetOrCompute(context.Background(), "k", time.Minute, thunk)
	require.NoError(t, err)
	v2, err := c.GetOrCompute(context.Background(), "k", time.Minute, thunk)
	require.NoError(t, err)

	assert.Equal(t, "computed", string(v1))
	assert.Equal(t, "computed", string(v2))
	assert.Equal(t, 1, calls)
}

func TestStats_TracksHitsAndMisses(t *testing.T) {
	c := New(10, 1<<20)
	c.Set("k", []byte("v"), 0)
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestKey_IsDeterministic(t *testing.T) {
	assert.Equal(t, Key("SELECT 1", "{}"), Key("SELECT 1", "{}"))
	assert.NotEqual(t, Key("SELECT 1", "{}"), Key("SELECT 2", "{}"))
}
