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

package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reFromTable = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][a-zA-Z0-9_\.]*)`)
	reJoinClause = regexp.MustCompile(`(?i)\b(INNER\s+|LEFT\s+(OUTER\s+)?|RIGHT\s+(OUTER\s+)?|FULL\s+(OUTER\s+)?)?JOIN\s+([a-zA-Z_][a-zA-Z0-9_\.]*)\s+ON\s+`)
	reAggFunc    = map[Aggregation]*regexp.Regexp{
		AggCount: regexp.MustCompile(`(?i)\bCOUNT\s*\(`),
		AggSum:   regexp.MustCompile(`(?i)\bSUM\s*\(`),
		AggAvg:   regexp.MustCompile(`(?i)\bAVG\s*\(`),
		AggMin:   regexp.MustCompile(`(?i)\bMIN\s*\(`),
		AggMax:   regexp.MustCompile(`(?i)\bMAX\s*\(`),
	}
	reWhere       = regexp.MustCompile(`(?i)\bWHERE\b`)
	reGroupBy     = regexp.MustCompile(`(?i)\bGROUP\s+BY\s+(.+?)(?:\bHAVING\b|\bORDER\s+BY\b|\bLIMIT\b|$)`)
	reSelectBlock = regexp.MustCompile(`(?is)^SELECT\s+(.*?)\s+FROM\s`)
	reWith        = regexp.MustCompile(`(?i)^WITH\s+(RECURSIVE\s+)?`)
	reWindowCall  = regexp.MustCompile(`(?i)\b([A-Z_][A-Z0-9_]*)\s*\(([^()]*)\)\s*OVER\s*\(`)
	reAliasDotCol = regexp.MustCompile(`(?i)\b([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_]*)\b`)

	stopKeywordsOn = []string{"JOIN", "WHERE", "GROUP BY", "ORDER BY", "LIMIT", "HAVING"}
)

// Analyze extracts the AnalysisResult from a raw SQL statement. It never
// panics: any internal failure is converted into IsValid=false with the
// failure message in Error.
func Analyze(sql string) (result AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			result = AnalysisResult{SQL: sql, IsValid: false, Error: fmt.Sprintf("analyzer panic: %v", r)}
		}
	}()

	if strings.TrimSpace(sql) == "" {
		return AnalysisResult{SQL: sql, IsValid: false, Error: "empty SQL statement"}
	}

	normalized := normalizeWhitespace(sql)

	ctes, isRecursiveGlobal := extractCTEs(normalized)
	bodyForAnalysis := stripLeadingWith(normalized)

	tables := extractTables(bodyForAnalysis)
	selectColumns := extractSelectColumns(bodyForAnalysis)
	aggregations := extractAggregations(bodyForAnalysis)
	joins := extractJoins(bodyForAnalysis)
	subqueries := extractSubqueries(bodyForAnalysis, tables)
	windows := extractWindowFunctions(bodyForAnalysis)

	for i := range ctes {
		ctes[i].IsRecursive = isRecursiveGlobal && referencesName(ctes[i].Body, ctes[i].Name)
	}

	hasWhere := reWhere.MatchString(bodyForAnalysis)
	groupBy := extractGroupBy(bodyForAnalysis)

	return AnalysisResult{
		SQL:              sql,
		Tables:           tables,
		SelectColumns:    selectColumns,
		Aggregations:     aggregations,
		HasWhere:         hasWhere,
		IsAggregateQuery: len(aggregations) > 0,
		GroupByColumns:   groupBy,
		Joins:            joins,
		Subqueries:       subqueries,
		CTEs:             ctes,
		WindowFunctions:  windows,
		IsValid:          true,
	}
}

// normalizeWhitespace collapses all whitespace runs to single spaces and
// trims the ends, without altering string literal contents.
func normalizeWhitespace(sql string) string {
	var b strings.Builder
	inSingle, inDouble := false, false
	lastWasSpace := false
	for _, r := range sql {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteRune(r)
			lastWasSpace = false
		case r == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteRune(r)
			lastWasSpace = false
		case !inSingle && !inDouble && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			b.WriteRune(r)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func stripLeadingWith(sql string) string {
	loc := reWith.FindStringIndex(sql)
	if loc == nil || loc[0] != 0 {
		return sql
	}
	// Skip past the WITH [RECURSIVE] keyword(s) and the CTE definition list,
	// landing on the outer statement (SELECT ...).
	rest := sql[loc[1]:]
	depth := 0
	for i, r := range rest {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && matchesKeywordAt(rest, i, "SELECT") {
				return rest[i:]
			}
		}
	}
	return sql
}

func matchesKeywordAt(s string, i int, kw string) bool {
	if i+len(kw) > len(s) {
		return false
	}
	if !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isIdentChar(rune(s[i-1])) {
		return false
	}
	if i+len(kw) < len(s) && isIdentChar(rune(s[i+len(kw)])) {
		return false
	}
	return true
}

func isIdentChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// extractTables returns the union of the FROM-clause table and every table
// following a JOIN variant, first-seen order, deduplicated.
func extractTables(sql string) []string {
	seen := map[string]bool{}
	var result []string

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		result = append(result, name)
	}

	if m := reFromTable.FindStringSubmatch(sql); m != nil {
		add(m[1])
	}
	for _, m := range reJoinClause.FindAllStringSubmatch(sql, -1) {
		add(m[len(m)-1])
	}
	return result
}

// extractSelectColumns returns the comma-split contents of SELECT...FROM,
// keeping the alias when an item contains AS, otherwise the raw expression.
func extractSelectColumns(sql string) []string {
	m := reSelectBlock.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}
	parts := splitTopLevel(m[1], ',')

	var columns []string
	reAs := regexp.MustCompile(`(?i)\bAS\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*$`)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if am := reAs.FindStringSubmatch(p); am != nil {
			columns = append(columns, am[1])
		} else {
			columns = append(columns, p)
		}
	}
	return columns
}

func extractAggregations(sql string) []Aggregation {
	var result []Aggregation
	for _, agg := range []Aggregation{AggCount, AggSum, AggAvg, AggMin, AggMax} {
		if reAggFunc[agg].MatchString(sql) {
			result = append(result, agg)
		}
	}
	return result
}

func extractGroupBy(sql string) []string {
	m := reGroupBy.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}
	var cols []string
	for _, c := range splitTopLevel(m[1], ',') {
		c = strings.TrimSpace(c)
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// extractJoins finds every JOIN phrase and splits its ON-clause on
// top-level ANDs, stopping at the next keyword boundary at depth 0.
func extractJoins(sql string) []Join {
	var joins []Join
	locs := reJoinClause.FindAllStringSubmatchIndex(sql, -1)
	matches := reJoinClause.FindAllStringSubmatch(sql, -1)

	for i, m := range matches {
		joinType := classifyJoinType(m[1])
		table := m[len(m)-1]
		onStart := locs[i][1]
		onEnd := findOnClauseEnd(sql, onStart)
		onClause := sql[onStart:onEnd]

		conditions := splitTopLevelAnd(onClause)
		joins = append(joins, Join{Type: joinType, Table: table, Conditions: conditions})
	}
	return joins
}

func classifyJoinType(prefix string) JoinType {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	switch {
	case strings.HasPrefix(prefix, "LEFT"):
		return JoinLeft
	case strings.HasPrefix(prefix, "RIGHT"):
		return JoinRight
	case strings.HasPrefix(prefix, "FULL"):
		return JoinFull
	default:
		return JoinInner
	}
}

// findOnClauseEnd scans forward from the start of an ON-clause body for the
// next stop keyword or an unbalancing close-paren, at depth 0.
func findOnClauseEnd(sql string, start int) int {
	depth := 0
	for i := start; i < len(sql); i++ {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return i
			}
			depth--
		default:
			if depth == 0 {
				for _, kw := range stopKeywordsOn {
					if matchesKeywordAt(sql, i, strings.Split(kw, " ")[0]) {
						return i
					}
				}
			}
		}
	}
	return len(sql)
}

// splitTopLevel splits s on sep, ignoring occurrences inside parens or
// quoted strings.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	inSingle, inDouble := false, false
	start := 0
	for i, r := range s {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
			// inside string literal, ignore structural characters
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// splitTopLevelAnd splits an ON-clause body on top-level AND keywords.
func splitTopLevelAnd(s string) []string {
	depth := 0
	inSingle, inDouble := false, false
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		r := s[i]
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
		case r == '(':
			depth++
		case r == ')':
			depth--
		default:
			if depth == 0 && matchesKeywordAt(s, i, "AND") {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 3
			}
		}
	}
	last := strings.TrimSpace(s[start:])
	if last != "" {
		parts = append(parts, last)
	}
	return parts
}

func referencesName(body, name string) bool {
	if name == "" {
		return false
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	return re.MatchString(body)
}
