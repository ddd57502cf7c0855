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

// Package audit implements a tamper-evident, hash-chained append-only log
// of every privacy-relevant event the mediator produces.
package audit

import (
	"context"
	"time"
)

// EventType classifies an Entry.
type EventType string

const (
	EventQuerySubmitted EventType = "QUERY_SUBMITTED"
	EventQueryAnalyzed  EventType = "QUERY_ANALYZED"
	EventPrivacyApplied EventType = "PRIVACY_APPLIED"
	EventQueryRejected  EventType = "QUERY_REJECTED"
	EventBudgetConsumed EventType = "BUDGET_CONSUMED"
	EventBudgetReset    EventType = "BUDGET_RESET"
	EventConfigChanged  EventType = "CONFIG_CHANGED"
	EventSystemError    EventType = "SYSTEM_ERROR"
)

// QueryEvent describes the query a log entry concerns.
type QueryEvent struct {
	QueryID string `json:"query_id"`
	SQL     string `json:"sql"`
	Tables  []string `json:"tables,omitempty"`
}

// PrivacyEvent records the mechanism applied to a query.
type PrivacyEvent struct {
	Mechanism     string   `json:"mechanism"`
	Epsilon       float64  `json:"epsilon"`
	Delta         float64  `json:"delta"`
	Sensitivity   float64  `json:"sensitivity"`
	PrivacyMethod string   `json:"privacy_method,omitempty"`
	Columns       []string `json:"columns,omitempty"`
}

// Entry is one immutable, hash-linked audit record.
type Entry struct {
	EntryID         string                 `json:"entry_id"`
	EventType       EventType              `json:"event_type"`
	Timestamp       time.Time              `json:"timestamp"`
	UserID          string                 `json:"user_id"`
	QueryEvent      *QueryEvent            `json:"query_event,omitempty"`
	PrivacyEvent    *PrivacyEvent          `json:"privacy_event,omitempty"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	PreviousHash    string                 `json:"previous_hash"`
	EntryHash       string                 `json:"entry_hash"`
}

// Filter narrows Query results.
type Filter struct {
	UserID         string
	EventTypes     map[EventType]bool
	Since          time.Time
	Until          time.Time
	QueryID        string
	PrivacyMethod  string
	IncludeRejected bool
	Offset         int
	Limit          int
}

// Statistics summarizes the current log contents.
type Statistics struct {
	TotalEntries     int
	ByEventType      map[EventType]int
	ByUser           map[string]int
	ByPrivacyMethod  map[string]int
	RejectedQueries  int
	TotalEpsilonSpent float64
}

// JSONExport is the document shape produced by ExportJSON.
type JSONExport struct {
	ExportTimestamp time.Time `json:"export_timestamp"`
	TotalEntries    int       `json:"total_entries"`
	Entries         []Entry   `json:"entries"`
}

// ExportSink persists an exported document (JSON or CSV bytes) to durable,
// possibly remote, storage.
type ExportSink interface {
	Write(ctx context.Context, key string, contentType string, data []byte) error
}

// ArchivalSink durably stores entries truncated from the in-memory ring
// before they are lost.
type ArchivalSink interface {
	Archive(ctx context.Context, entries []Entry) error
}
