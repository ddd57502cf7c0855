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
	"context"
	"encoding/json"
	"fmt"

	"github.com/veilquery/mediator/connectors/base"
)

// CassandraArchivalSink durably stores entries evicted from the in-memory
// ring in a keyspace.table the connector was configured against.
type CassandraArchivalSink struct {
	connector base.Connector
	table     string
}

// NewCassandraArchivalSink wraps an already-Connected Cassandra connector.
func NewCassandraArchivalSink(connector base.Connector, table string) *CassandraArchivalSink {
	if table == "" {
		table = "audit_entries_archive"
	}
	return &CassandraArchivalSink{connector: connector, table: table}
}

// Archive inserts each entry as a row, one statement per entry (CQL has no
// portable multi-row INSERT).
func (s *CassandraArchivalSink) Archive(ctx context.Context, entries []Entry) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (entry_id, event_type, ts, user_id, payload, previous_hash, entry_hash) VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.table,
	)
	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry %s: %w", e.EntryID, err)
		}
		_, err = s.connector.Execute(ctx, &base.Command{
			Action:    "insert",
			Statement: stmt,
			Parameters: map[string]interface{}{
				"1_entry_id":     e.EntryID,
				"2_event_type":   string(e.EventType),
				"3_ts":           e.Timestamp,
				"4_user_id":      e.UserID,
				"5_payload":      string(payload),
				"6_previous_hash": e.PreviousHash,
				"7_entry_hash":   e.EntryHash,
			},
		})
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", e.EntryID, err)
		}
	}
	return nil
}
