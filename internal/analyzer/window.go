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

var (
	rePartitionBy = regexp.MustCompile(`(?i)PARTITION\s+BY\s+(.+?)(?:\bORDER\s+BY\b|$)`)
	reOrderByIn   = regexp.MustCompile(`(?i)ORDER\s+BY\s+(.+?)(?:\bROWS\b|\bRANGE\b|\bGROUPS\b|$)`)
	reFrameClause = regexp.MustCompile(`(?i)\b(ROWS|RANGE|GROUPS)\s+.+$`)
)

// extractWindowFunctions finds every `IDENT(args) OVER (...)` call whose
// IDENT is a known window function, and parses PARTITION BY, ORDER BY, and
// the frame clause out of the OVER(...) body.
func extractWindowFunctions(sql string) []WindowFunction {
	var result []WindowFunction

	idx := reWindowCall.FindAllStringSubmatchIndex(sql, -1)
	matches := reWindowCall.FindAllStringSubmatch(sql, -1)

	for i, m := range matches {
		fn := strings.ToUpper(m[1])
		if !knownWindowFunctions[fn] {
			continue
		}
		// Locate the opening paren of OVER(...) — it's the last char of the
		// overall match — and find its matching close.
		openIdx := idx[i][1] - 1
		closeIdx := matchParen(sql, openIdx)
		if closeIdx < 0 {
			continue
		}
		body := sql[openIdx+1 : closeIdx]

		wf := WindowFunction{Function: m[1]}
		if pm := rePartitionBy.FindStringSubmatch(body); pm != nil {
			for _, c := range splitTopLevel(pm[1], ',') {
				c = strings.TrimSpace(c)
				if c != "" {
					wf.PartitionBy = append(wf.PartitionBy, c)
				}
			}
		}
		if om := reOrderByIn.FindStringSubmatch(body); om != nil {
			for _, c := range splitTopLevel(om[1], ',') {
				c = strings.TrimSpace(c)
				if c != "" {
					wf.OrderBy = append(wf.OrderBy, c)
				}
			}
		}
		if fm := reFrameClause.FindString(body); fm != "" {
			wf.Frame = strings.TrimSpace(fm)
		}

		result = append(result, wf)
	}
	return result
}
