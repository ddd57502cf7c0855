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

// Package analyzer extracts the semantic features the policy and
// sensitivity layers need from a raw SQL statement. It is not a parser:
// it is tokenization/regex sufficient to recognize the constructs the
// rest of the pipeline cares about, isolated behind the AnalysisResult
// contract so a real parser can be swapped in later without touching
// policy or sensitivity code.
package analyzer

// JoinType enumerates the SQL join variants the analyzer recognizes.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// Join describes one JOIN clause.
type Join struct {
	Type       JoinType
	Table      string
	Conditions []string
}

// SubqueryKind classifies a nested SELECT by how it is used.
type SubqueryKind string

const (
	SubqueryScalar SubqueryKind = "SCALAR"
	SubqueryExists SubqueryKind = "EXISTS"
	SubqueryIn     SubqueryKind = "IN"
	SubqueryFrom   SubqueryKind = "FROM"
)

// SubqueryLocation identifies which outer clause contains the subquery.
type SubqueryLocation string

const (
	LocationSelect SubqueryLocation = "SELECT"
	LocationWhere  SubqueryLocation = "WHERE"
	LocationHaving SubqueryLocation = "HAVING"
	LocationFrom   SubqueryLocation = "FROM"
)

// Subquery describes one balanced (SELECT ...) expression found in the
// outer statement.
type Subquery struct {
	Body               string
	Kind               SubqueryKind
	Location           SubqueryLocation
	IsCorrelated       bool
	CorrelationColumns []string
}

// CTE describes one WITH ... AS (...) definition.
type CTE struct {
	Name        string
	Columns     []string
	Body        string
	IsRecursive bool
	References  []string
}

// WindowFunction describes one `fn(...) OVER (...)` expression.
type WindowFunction struct {
	Function     string
	PartitionBy  []string
	OrderBy      []string
	Frame        string
}

// Aggregation is one of the recognized aggregate functions.
type Aggregation string

const (
	AggCount Aggregation = "COUNT"
	AggSum   Aggregation = "SUM"
	AggAvg   Aggregation = "AVG"
	AggMin   Aggregation = "MIN"
	AggMax   Aggregation = "MAX"
)

// AnalysisResult is the complete set of features extracted from a SQL
// statement. It is immutable once returned from Analyze.
type AnalysisResult struct {
	SQL              string
	Tables           []string
	SelectColumns    []string
	Aggregations     []Aggregation
	HasWhere         bool
	IsAggregateQuery bool
	GroupByColumns   []string
	Joins            []Join
	Subqueries       []Subquery
	CTEs             []CTE
	WindowFunctions  []WindowFunction
	IsValid          bool
	Error            string
}

// knownWindowFunctions is the set of identifiers the analyzer recognizes as
// window functions when followed by `(...) OVER (...)`.
var knownWindowFunctions = map[string]bool{
	"ROW_NUMBER":   true,
	"RANK":         true,
	"DENSE_RANK":   true,
	"NTILE":        true,
	"LAG":          true,
	"LEAD":         true,
	"FIRST_VALUE":  true,
	"LAST_VALUE":   true,
	"SUM":          true,
	"COUNT":        true,
	"AVG":          true,
	"MIN":          true,
	"MAX":          true,
	"PERCENT_RANK": true,
	"CUME_DIST":    true,
}
