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
	"regexp"
	"strings"
)

var reSelectStart = regexp.MustCompile(`(?i)^SELECT\b`)

var reFromAlias = regexp.MustCompile(`(?i)\bFROM\s+[a-zA-Z_][a-zA-Z0-9_\.]*\s+(?:AS\s+)?([a-zA-Z_][a-zA-Z0-9_]*)`)

var clauseKeywords = map[string]bool{"WHERE": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "CROSS": true, "ON": true, "GROUP": true, "ORDER": true, "LIMIT": true, "HAVING": true, "UNION": true}

// extractSubqueries finds every balanced (SELECT ...) in sql, outside-in
// (the outer one first), classifies it by textual left-context, and flags
// correlation against the outer query's known table names and the alias of
// its first FROM table.
func extractSubqueries(sql string, outerTables []string) []Subquery {
	var result []Subquery

	outerNames := outerTables
	if m := reFromAlias.FindStringSubmatch(sql); m != nil && !clauseKeywords[strings.ToUpper(m[1])] {
		outerNames = append(append([]string{}, outerTables...), m[1])
	}

	var scan func(s string, offsetInOriginal int)
	scan = func(s string, _ int) {
		for i := 0; i < len(s); i++ {
			if s[i] != '(' {
				continue
			}
			end := matchParen(s, i)
			if end < 0 {
				continue
			}
			inner := strings.TrimSpace(s[i+1 : end])
			if reSelectStart.MatchString(inner) {
				kind := classifySubqueryContext(s, i)
				loc := classifySubqueryLocation(s, i)
				correlated, cols := detectCorrelation(inner, outerNames)
				result = append(result, Subquery{
					Body:               inner,
					Kind:               kind,
					Location:           loc,
					IsCorrelated:       correlated,
					CorrelationColumns: cols,
				})
				// Recurse into nested subqueries within this one, but since
				// callers want outside-in order, the outer entry above is
				// already appended before we descend.
				scan(inner, 0)
			}
			i = end
		}
	}

	scan(sql, 0)
	return result
}

// matchParen returns the index of the matching ')' for the '(' at openIdx,
// respecting quoted strings, or -1 if unbalanced.
func matchParen(s string, openIdx int) int {
	depth := 0
	inSingle, inDouble := false, false
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '(':
			if !inSingle && !inDouble {
				depth++
			}
		case ')':
			if !inSingle && !inDouble {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// classifySubqueryContext inspects the text immediately preceding the
// opening paren at idx to determine the subquery kind. SCALAR is the
// documented fallback for ambiguous/nested cases.
func classifySubqueryContext(s string, idx int) SubqueryKind {
	prefix := strings.TrimRight(s[:idx], " ")
	upper := strings.ToUpper(prefix)

	switch {
	case strings.HasSuffix(upper, "EXISTS"):
		return SubqueryExists
	case strings.HasSuffix(upper, "IN"):
		return SubqueryIn
	case strings.HasSuffix(upper, "FROM"):
		return SubqueryFrom
	case endsWithComparisonOperator(upper):
		return SubqueryScalar
	default:
		return SubqueryScalar
	}
}

func endsWithComparisonOperator(upper string) bool {
	for _, op := range []string{"=", ">", "<", ">=", "<=", "<>", "!="} {
		if strings.HasSuffix(strings.TrimRight(upper, " "), op) {
			return true
		}
	}
	return false
}

func classifySubqueryLocation(s string, idx int) SubqueryLocation {
	prefix := strings.ToUpper(s[:idx])

	lastIdx := func(kw string) int {
		return strings.LastIndex(prefix, kw)
	}
	sel, whr, hav, frm := lastIdx(" SELECT "), lastIdx(" WHERE "), lastIdx(" HAVING "), lastIdx(" FROM ")
	// Prepend a space so a keyword at position 0 is still found; also check
	// literal prefix start.
	if strings.HasPrefix(prefix, "SELECT ") && sel < 0 {
		sel = 0
	}

	best := LocationSelect
	bestIdx := -1
	for loc, at := range map[SubqueryLocation]int{
		LocationSelect: sel,
		LocationWhere:  whr,
		LocationHaving: hav,
		LocationFrom:   frm,
	} {
		if at > bestIdx {
			bestIdx = at
			best = loc
		}
	}
	return best
}

// detectCorrelation reports whether the subquery body references an outer
// table via `alias.col` where alias matches one of the given outer names
// (table names, plus the outer FROM alias supplied by extractSubqueries).
func detectCorrelation(body string, outerTables []string) (bool, []string) {
	if len(outerTables) == 0 {
		return false, nil
	}
	outer := map[string]bool{}
	for _, t := range outerTables {
		outer[strings.ToLower(lastSegment(t))] = true
	}

	var cols []string
	for _, m := range reAliasDotCol.FindAllStringSubmatch(body, -1) {
		alias := strings.ToLower(m[1])
		if outer[alias] {
			cols = append(cols, m[1]+"."+m[2])
		}
	}
	return len(cols) > 0, cols
}

func lastSegment(s string) string {
	parts := strings.Split(s, ".")
	return parts[len(parts)-1]
}
