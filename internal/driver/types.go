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

// Package driver orchestrates one request through analysis, policy,
// budget, execution, and privacy transformation, producing the uniform
// Response contract described in spec.md §6.
package driver

import "github.com/veilquery/mediator/internal/budget"

// ResponseType classifies how a query was ultimately handled.
type ResponseType string

const (
	ResponseDP          ResponseType = "DP"
	ResponseDeID        ResponseType = "DeID"
	ResponsePass        ResponseType = "PASS"
	ResponseError       ResponseType = "ERROR"
	ResponseBudgetError ResponseType = "BUDGET_ERROR"
)

// PrivacyInfo describes what, if anything, was done to protect the result.
type PrivacyInfo struct {
	Method           string         `json:"method"`
	Epsilon          *float64       `json:"epsilon,omitempty"`
	Sensitivity      *float64       `json:"sensitivity,omitempty"`
	ColumnsProcessed []string       `json:"columns_processed,omitempty"`
	RemainingBudget  *float64       `json:"remaining_budget,omitempty"`
	RequestedBudget  *float64       `json:"requested_budget,omitempty"`
	BudgetStatus     *budget.Status `json:"budget_status,omitempty"`
}

// Response is the uniform shape returned from ProcessQuery.
type Response struct {
	Type            ResponseType `json:"type"`
	OriginalQuery   string       `json:"original_query"`
	ProtectedResult interface{}  `json:"protected_result"`
	PrivacyInfo     PrivacyInfo  `json:"privacy_info"`
	Error           string       `json:"error,omitempty"`
}

// RequestContext carries the caller identity and free-form extras a single
// request needs across the pipeline.
type RequestContext struct {
	UserID   string
	UserRole string
	Extra    map[string]interface{}
}

// Config gates optional pipeline behavior.
type Config struct {
	// BudgetEnabled turns on the Budget step (pipeline step 3). When false,
	// DP decisions are executed and transformed without budget accounting.
	BudgetEnabled bool

	// RefundOnExecutorError resolves the documented open question (spec.md
	// §9): when true, a budget debit made for a DP query is refunded if the
	// executor subsequently fails, preserving "no successful answer implies
	// no budget spent." When false, the debit stands (the source behavior).
	RefundOnExecutorError bool
}
