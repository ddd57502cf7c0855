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

// Package httpapi is the external-facing glue (spec.md §6): it marshals
// JSON, extracts the caller identity from a JWT, and maps the driver's
// response types to HTTP status codes. All privacy semantics live in
// internal/driver; this package never evaluates a policy decision itself.
package httpapi

import "github.com/veilquery/mediator/internal/driver"

// QueryRequest is the POST /api/v1/query body.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse mirrors driver.Response for the wire (identical shape,
// named separately so the wire contract can diverge from the internal one
// without touching driver.Response's consumers).
type QueryResponse = driver.Response

// ErrorResponse is the JSON body returned for any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// BudgetResponse is the GET /api/v1/budget/{user_id} body.
type BudgetResponse struct {
	UserID         string  `json:"user_id"`
	TotalBudget    float64 `json:"total_budget"`
	ConsumedBudget float64 `json:"consumed_budget"`
	Remaining      float64 `json:"remaining"`
	Role           string  `json:"role"`
}

// HistoryEntry is one element of the GET /api/v1/budget/{user_id}/history
// body, which is a JSON array of entries.
type HistoryEntry struct {
	ID              string  `json:"id"`
	QueryID         string  `json:"query_id"`
	EpsilonConsumed float64 `json:"epsilon_consumed"`
	Timestamp       string  `json:"timestamp"`
	Mechanism       string  `json:"mechanism"`
}
