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

var reCTEHead = regexp.MustCompile(`(?i)^\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*(\(([^()]*)\))?\s*AS\s*\(`)

// extractCTEs recognizes a leading WITH [RECURSIVE] clause and splits the
// top-level CTE definitions on top-level commas, parsing each as
// `name [(cols)] AS ( body )`. Returns the CTEs found and whether RECURSIVE
// was present globally; per-CTE recursiveness is resolved by the caller
// once it also has the outer query body.
func extractCTEs(sql string) ([]CTE, bool) {
	m := reWith.FindStringIndex(sql)
	if m == nil || m[0] != 0 {
		return nil, false
	}
	isRecursive := regexp.MustCompile(`(?i)^WITH\s+RECURSIVE\b`).MatchString(sql)

	rest := sql[m[1]:]
	var ctes []CTE
	pos := 0
	for pos < len(rest) {
		head := reCTEHead.FindStringSubmatchIndex(rest[pos:])
		if head == nil {
			break
		}
		name := rest[pos+head[2] : pos+head[3]]
		var cols []string
		if head[6] >= 0 {
			for _, c := range strings.Split(rest[pos+head[6]:pos+head[7]], ",") {
				c = strings.TrimSpace(c)
				if c != "" {
					cols = append(cols, c)
				}
			}
		}

		bodyOpen := pos + head[1] - 1 // index of the '(' that opens the body
		bodyClose := matchParen(rest, bodyOpen)
		if bodyClose < 0 {
			break
		}
		body := strings.TrimSpace(rest[bodyOpen+1 : bodyClose])

		ctes = append(ctes, CTE{Name: name, Columns: cols, Body: body})

		after := strings.TrimLeft(rest[bodyClose+1:], " ")
		if strings.HasPrefix(after, ",") {
			consumed := len(rest[bodyClose+1:]) - len(after) + 1
			pos = bodyClose + 1 + consumed
			continue
		}
		break
	}
	return ctes, isRecursive
}
