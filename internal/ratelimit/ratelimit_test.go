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

package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndRecord_AllowsWithinLimit(t *testing.T) {
	l := New(100, 100, 5)
	for i := 0; i < 5; i++ {
		res := l.CheckAndRecord("alice")
		assert.True(t, res.Allowed)
	}
}

func TestCheckAndRecord_DeniesOverPerUserLimit(t *testing.T) {
	l := New(100, 100, 2)
	assert.True(t, l.CheckAndRecord("bob").Allowed)
	assert.True(t, l.CheckAndRecord("bob").Allowed)
	assert.False(t, l.CheckAndRecord("bob").Allowed)
}

func TestCheckAndRecord_PerUserLimitsAreIndependent(t *testing.T) {
	l := New(100, 100, 1)
	assert.True(t, l.CheckAndRecord("carol").Allowed)
	assert.True(t, l.CheckAndRecord("dave").Allowed)
	assert.False(t, l.CheckAndRecord("carol").Allowed)
}

func TestCheckAndRecord_DeniesOverGlobalWindow(t *testing.T) {
	l := New(100, 2, 100)
	assert.True(t, l.CheckAndRecord("alice").Allowed)
	assert.True(t, l.CheckAndRecord("bob").Allowed)
	assert.False(t, l.CheckAndRecord("carol").Allowed)
}

func TestCheckAndRecord_DeniesOverBurstLimit(t *testing.T) {
	l := New(1, 100, 100)
	assert.True(t, l.CheckAndRecord("alice").Allowed)
	assert.False(t, l.CheckAndRecord("bob").Allowed)
}
