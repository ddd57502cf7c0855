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

// Package executor defines the boundary between the mediator core and a
// backend capable of actually running a SQL statement. The core never
// interprets SQL beyond what the analyzer already extracted; executors
// translate an already-analyzed, already-policed statement into a
// backend-specific call and return a uniform Result.
package executor

import (
	"context"

	"github.com/veilquery/mediator/internal/analyzer"
	"github.com/veilquery/mediator/internal/policy"
)

// Result is what every Executor implementation returns: either a scalar
// (for an aggregate query) or a list of records, plus how many rows the
// backend reported.
type Result struct {
	// Data is a scalar as the backend driver returns it (for example
	// float64, int64, string or nil) for aggregate queries, or
	// []map[string]interface{} for row-set queries.
	Data     interface{}
	RowCount int
}

// Executor runs an already-analyzed, already-policed SQL statement against
// a backend. Implementations must refuse to run when decision.Action is
// policy.ActionReject — the Driver never calls Execute in that case, but a
// defensive Executor should not assume its caller is the only caller.
type Executor interface {
	Execute(ctx context.Context, sql string, analysis analyzer.AnalysisResult, decision policy.Decision, reqCtx policy.Context) (Result, error)
}
