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
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilquery/mediator/internal/obslog"
)

// Logger is a bounded, hash-chained, append-only audit log. All operations
// are serialized by a single mutex.
type Logger struct {
	mu sync.Mutex

	entries    []Entry
	maxEntries int
	lastHash   string

	archival ArchivalSink
	log      *obslog.Logger
}

// NewLogger builds a Logger with the given ring-buffer capacity. archival
// may be nil; when set, it receives entries evicted by truncation.
func NewLogger(maxEntries int, archival ArchivalSink) *Logger {
	if maxEntries <= 0 {
		maxEntries = 100000
	}
	return &Logger{
		maxEntries: maxEntries,
		archival:   archival,
		log:        obslog.New("audit"),
	}
}

// Append computes the entry's hash-chain linkage and adds it to the log,
// truncating from the head if the ring buffer is full.
func (l *Logger) Append(e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.PreviousHash = l.lastHash

	hash, err := entryHash(e)
	if err != nil {
		return Entry{}, fmt.Errorf("compute entry hash: %w", err)
	}
	e.EntryHash = hash
	l.lastHash = hash

	l.entries = append(l.entries, e)
	if len(l.entries) > l.maxEntries {
		overflow := len(l.entries) - l.maxEntries
		evicted := append([]Entry(nil), l.entries[:overflow]...)
		l.entries = l.entries[overflow:]
		if l.archival != nil {
			go func() {
				if err := l.archival.Archive(context.Background(), evicted); err != nil {
					l.log.Warn("archival of evicted entries failed", map[string]any{"error": err.Error(), "count": len(evicted)})
				}
			}()
		}
	}
	return e, nil
}

// VerifyChainIntegrity recomputes every entry's hash and checks
// previous↔current linkage across the retained suffix.
func (l *Logger) VerifyChainIntegrity() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prevHash string
	for i, e := range l.entries {
		if i > 0 && e.PreviousHash != prevHash {
			return false
		}
		recomputed, err := entryHash(e)
		if err != nil || recomputed != e.EntryHash {
			return false
		}
		prevHash = e.EntryHash
	}
	return true
}

func matches(e Entry, f Filter) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if len(f.EventTypes) > 0 && !f.EventTypes[e.EventType] {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.QueryID != "" {
		qid := ""
		if e.QueryEvent != nil {
			qid = e.QueryEvent.QueryID
		}
		if qid != f.QueryID {
			return false
		}
	}
	if f.PrivacyMethod != "" {
		method := ""
		if e.PrivacyEvent != nil {
			method = e.PrivacyEvent.PrivacyMethod
		}
		if method != f.PrivacyMethod {
			return false
		}
	}
	if !f.IncludeRejected && e.EventType == EventQueryRejected {
		return false
	}
	return true
}

// Query filters entries, applying offset/limit pagination after filtering.
func (l *Logger) Query(f Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []Entry
	for _, e := range l.entries {
		if matches(e, f) {
			matched = append(matched, e)
		}
	}

	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return matched[start:end]
}

// ExportJSON renders the entire retained log as a JSONExport document.
func (l *Logger) ExportJSON() JSONExport {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := append([]Entry(nil), l.entries...)
	return JSONExport{
		ExportTimestamp: time.Now().UTC(),
		TotalEntries:    len(entries),
		Entries:         entries,
	}
}

var csvHeader = []string{"entry_id", "event_type", "timestamp", "user_id", "query_id", "privacy_method", "epsilon", "rejection_reason"}

// ExportCSV renders the entire retained log with the fixed audit CSV
// header, CSV-escaping the rejection_reason field.
func (l *Logger) ExportCSV() ([]byte, error) {
	l.mu.Lock()
	entries := append([]Entry(nil), l.entries...)
	l.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		queryID := ""
		if e.QueryEvent != nil {
			queryID = e.QueryEvent.QueryID
		}
		privacyMethod := ""
		epsilon := ""
		if e.PrivacyEvent != nil {
			privacyMethod = e.PrivacyEvent.PrivacyMethod
			epsilon = fmt.Sprintf("%g", e.PrivacyEvent.Epsilon)
		}
		row := []string{
			e.EntryID,
			string(e.EventType),
			e.Timestamp.Format(time.RFC3339),
			e.UserID,
			queryID,
			privacyMethod,
			epsilon,
			e.RejectionReason,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Stats computes aggregate statistics over the retained log.
func (l *Logger) Stats() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Statistics{
		ByEventType:     make(map[EventType]int),
		ByUser:          make(map[string]int),
		ByPrivacyMethod: make(map[string]int),
	}
	for _, e := range l.entries {
		stats.TotalEntries++
		stats.ByEventType[e.EventType]++
		stats.ByUser[e.UserID]++
		if e.EventType == EventQueryRejected {
			stats.RejectedQueries++
		}
		if e.PrivacyEvent != nil {
			if e.PrivacyEvent.PrivacyMethod != "" {
				stats.ByPrivacyMethod[e.PrivacyEvent.PrivacyMethod]++
			}
			if e.EventType == EventPrivacyApplied {
				stats.TotalEpsilonSpent += e.PrivacyEvent.Epsilon
			}
		}
	}
	return stats
}
