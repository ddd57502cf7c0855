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

package policy

import (
	"regexp"
	"sync"

	"github.com/veilquery/mediator/internal/analyzer"
	"github.com/veilquery/mediator/internal/config"
	"github.com/veilquery/mediator/internal/obslog"
)

const defaultDelta = 1e-5

// compiledPattern pairs a configured column pattern with its compiled regex
// so Evaluate never recompiles on the hot path.
type compiledPattern struct {
	pattern config.ColumnPattern
	re      *regexp.Regexp
}

// Engine evaluates analyzed queries against the active configuration
// document. It caches compiled column-pattern regexes and refreshes them
// whenever the backing Manager reloads.
type Engine struct {
	cfg *config.Manager
	log *obslog.Logger

	mu       sync.RWMutex
	compiled []compiledPattern
	compiledFor *config.Document
}

// NewEngine builds an Engine bound to cfg and performs an initial compile of
// its column patterns.
func NewEngine(cfg *config.Manager) *Engine {
	e := &Engine{cfg: cfg, log: obslog.New("policy")}
	e.recompile(cfg.Snapshot())
	cfg.OnReload(func(_, newDoc *config.Document) { e.recompile(newDoc) })
	return e
}

func (e *Engine) recompile(doc *config.Document) {
	compiled := make([]compiledPattern, 0, len(doc.ColumnPatterns))
	for _, p := range doc.ColumnPatterns {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			e.log.Warn("skipping invalid column pattern", map[string]any{"pattern": p.Pattern, "error": err.Error()})
			continue
		}
		compiled = append(compiled, compiledPattern{pattern: p, re: re})
	}
	e.mu.Lock()
	e.compiled = compiled
	e.compiledFor = doc
	e.mu.Unlock()
}

func (e *Engine) patterns() []compiledPattern {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.compiled
}

// Evaluate maps one analyzed query to a single Decision, applying the
// ordered rule list: invalid query, role table access, classification,
// column-pattern match, aggregate queries, sensitive columns, else pass.
func (e *Engine) Evaluate(result analyzer.AnalysisResult, role *config.Role, roleName string, reqCtx Context) Decision {
	doc := e.cfg.Snapshot()

	// 1. A query the analyzer could not parse is always rejected.
	if !result.IsValid {
		return Decision{
			Action:      ActionReject,
			MatchedRule: "invalid_query",
			Reason:      "query could not be analyzed: " + result.Error,
			RoleApplied: roleName,
		}
	}

	// 2/3. Role-scoped table access.
	if role != nil {
		if denied := firstIntersection(result.Tables, role.DeniedTables); denied != "" {
			return Decision{
				Action:      ActionReject,
				MatchedRule: "role_denied_table",
				Reason:      "role denies access to table " + denied,
				RoleApplied: roleName,
			}
		}
		if len(role.AllowedTables) > 0 {
			if missing := firstMissing(result.Tables, role.AllowedTables); missing != "" {
				return Decision{
					Action:      ActionReject,
					MatchedRule: "role_not_allowed_table",
					Reason:      "role is not allowed to query table " + missing,
					RoleApplied: roleName,
				}
			}
		}
	}

	// 4. Classification is the most severe table_policy among queried tables.
	classification := config.ClassPublic
	for _, t := range result.Tables {
		if tp, ok := doc.TablePolicies[t]; ok && tp.Classification.MoreSevere(classification) {
			classification = tp.Classification
		}
	}

	// 5. Column-pattern match against selected columns.
	for _, cp := range e.patterns() {
		for _, col := range result.SelectColumns {
			if cp.re.MatchString(col) {
				return Decision{
					Action:         ActionDeID,
					Params:         Params{Method: cp.pattern.PrivacyMethod, Columns: []string{col}},
					MatchedRule:    "column_pattern:" + cp.pattern.Pattern,
					Reason:         "column " + col + " matched configured pattern",
					Classification: string(classification),
					RoleApplied:    roleName,
				}
			}
		}
	}

	// 6. Aggregate queries receive differential privacy.
	if result.IsAggregateQuery {
		epsilon := doc.DefaultEpsilon
		delta := defaultDelta
		if role != nil {
			if role.Epsilon != nil {
				epsilon = *role.Epsilon
			}
			if role.Delta != nil {
				delta = *role.Delta
			}
		}
		if cr, ok := doc.ClassificationRules[classification]; ok && cr.Epsilon < epsilon {
			epsilon = cr.Epsilon
		}
		return Decision{
			Action: ActionDP,
			Params: Params{
				Epsilon:     epsilon,
				Delta:       delta,
				Sensitivity: 1,
				Mechanism:   "laplace",
			},
			MatchedRule:    "aggregate_query",
			Reason:         "aggregate query subject to differential privacy",
			Classification: string(classification),
			RoleApplied:    roleName,
		}
	}

	// 7. Sensitive or role-denied columns are de-identified.
	var sensitive []string
	for _, col := range result.SelectColumns {
		if doc.IsSensitiveColumn(col) || (role != nil && contains(role.DeniedColumns, col)) {
			sensitive = append(sensitive, col)
		}
	}
	if len(sensitive) > 0 {
		return Decision{
			Action:         ActionDeID,
			Params:         Params{Method: "hash", Columns: sensitive},
			MatchedRule:    "sensitive_columns",
			Reason:         "query selects sensitive columns",
			Classification: string(classification),
			RoleApplied:    roleName,
		}
	}

	// 8. Nothing matched: pass the query through unmodified.
	return Decision{
		Action:         ActionPass,
		MatchedRule:    "default_pass",
		Classification: string(classification),
		RoleApplied:    roleName,
	}
}

func firstIntersection(have, denied []string) string {
	for _, t := range have {
		if contains(denied, t) {
			return t
		}
	}
	return ""
}

func firstMissing(have, allowed []string) string {
	for _, t := range have {
		if !contains(allowed, t) {
			return t
		}
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
