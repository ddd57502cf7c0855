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

package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_ChainsHashes(t *testing.T) {
	l := NewLogger(100, nil)

	e1, err := l.Append(Entry{EventType: EventQuerySubmitted, UserID: "alice"})
	require.NoError(t, err)
	e2, err := l.Append(Entry{EventType: EventQueryAnalyzed, UserID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, "", e1.PreviousHash)
	assert.Equal(t, e1.EntryHash, e2.PreviousHash)
	assert.NotEmpty(t, e1.EntryHash)
	assert.True(t, l.VerifyChainIntegrity())
}

func TestVerifyChainIntegrity_DetectsTampering(t *testing.T) {
	l := NewLogger(100, nil)
	l.Append(Entry{EventType: EventQuerySubmitted, UserID: "alice"})
	l.Append(Entry{EventType: EventQueryAnalyzed, UserID: "alice"})

	l.entries[0].UserID = "mallory"
	assert.False(t, l.VerifyChainIntegrity())
}

func TestAppend_TruncatesFromHeadWhenFull(t *testing.T) {
	l := NewLogger(2, nil)
	first, _ := l.Append(Entry{EventType: EventQuerySubmitted, UserID: "alice"})
	l.Append(Entry{EventType: EventQuerySubmitted, UserID: "bob"})
	l.Append(Entry{EventType: EventQuerySubmitted, UserID: "carol"})

	l.mu.Lock()
	entries := append([]Entry(nil), l.entries...)
	l.mu.Unlock()

	require.Len(t, entries, 2)
	assert.NotEqual(t, first.EntryID, entries[0].EntryID)
	assert.True(t, l.VerifyChainIntegrity())
}

func TestQuery_FiltersByUserAndExcludesRejectedByDefault(t *testing.T) {
	l := NewLogger(100, nil)
	l.Append(Entry{EventType: EventQuerySubmitted, UserID: "alice"})
	l.Append(Entry{EventType: EventQueryRejected, UserID: "alice", RejectionReason: "insufficient_budget"})
	l.Append(Entry{EventType: EventQuerySubmitted, UserID: "bob"})

	results := l.Query(Filter{UserID: "alice"})
	require.Len(t, results, 1)
	assert.Equal(t, EventQuerySubmitted, results[0].EventType)

	results = l.Query(Filter{UserID: "alice", IncludeRejected: true})
	assert.Len(t, results, 2)
}

func TestExportCSV_EscapesRejectionReason(t *testing.T) {
	l := NewLogger(100, nil)
	l.Append(Entry{EventType: EventQueryRejected, UserID: "alice", RejectionReason: "contains, a comma"})

	data, err := l.ExportCSV()
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "entry_id,event_type,timestamp,user_id,query_id,privacy_method,epsilon,rejection_reason"))
	assert.Contains(t, text, `"contains, a comma"`)
}

func TestStats_CountsEpsilonAndRejections(t *testing.T) {
	l := NewLogger(100, nil)
	l.Append(Entry{EventType: EventQueryRejected, UserID: "alice"})
	l.Append(Entry{
		EventType:    EventPrivacyApplied,
		UserID:       "alice",
		PrivacyEvent: &PrivacyEvent{Mechanism: "laplace", Epsilon: 0.5, PrivacyMethod: "laplace"},
	})

	stats := l.Stats()
	assert.Equal(t, 1, stats.RejectedQueries)
	assert.InDelta(t, 0.5, stats.TotalEpsilonSpent, 1e-9)
	assert.Equal(t, 2, stats.TotalEntries)
}
