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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilquery/mediator/internal/analyzer"
	"github.com/veilquery/mediator/internal/config"
)

func newTestEngine(t *testing.T, yamlContent string) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))
	return NewEngine(config.NewManager(path))
}

func TestEvaluate_InvalidQueryRejected(t *testing.T) {
	e := newTestEngine(t, "default_epsilon: 1.0\n")
	d := e.Evaluate(analyzer.AnalysisResult{IsValid: false, Error: "empty SQL"}, nil, "analyst", Context{})
	assert.Equal(t, ActionReject, d.Action)
	assert.Equal(t, "invalid_query", d.MatchedRule)
}

func TestEvaluate_RoleDeniedTable(t *testing.T) {
	e := newTestEngine(t, "default_epsilon: 1.0\n")
	role := &config.Role{DeniedTables: []string{"payroll"}}
	d := e.Evaluate(analyzer.AnalysisResult{IsValid: true, Tables: []string{"payroll"}}, role, "analyst", Context{})
	assert.Equal(t, ActionReject, d.Action)
	assert.Equal(t, "role_denied_table", d.MatchedRule)
}

func TestEvaluate_RoleNotInAllowedTables(t *testing.T) {
	e := newTestEngine(t, "default_epsilon: 1.0\n")
	role := &config.Role{AllowedTables: []string{"orders"}}
	d := e.Evaluate(analyzer.AnalysisResult{IsValid: true, Tables: []string{"customers"}}, role, "analyst", Context{})
	assert.Equal(t, ActionReject, d.Action)
	assert.Equal(t, "role_not_allowed_table", d.MatchedRule)
}

func TestEvaluate_AggregateQueryGetsDP(t *testing.T) {
	e := newTestEngine(t, "default_epsilon: 2.0\n")
	d := e.Evaluate(analyzer.AnalysisResult{IsValid: true, Tables: []string{"orders"}, IsAggregateQuery: true}, nil, "analyst", Context{})
	assert.Equal(t, ActionDP, d.Action)
	assert.Equal(t, 2.0, d.Params.Epsilon)
	assert.Equal(t, "laplace", d.Params.Mechanism)
}

func TestEvaluate_RoleEpsilonCapsDefault(t *testing.T) {
	e := newTestEngine(t, "default_epsilon: 2.0\n")
	roleEps := 0.3
	role := &config.Role{Epsilon: &roleEps}
	d := e.Evaluate(analyzer.AnalysisResult{IsValid: true, Tables: []string{"orders"}, IsAggregateQuery: true}, role, "analyst", Context{})
	assert.Equal(t, ActionDP, d.Action)
	assert.Equal(t, 0.3, d.Params.Epsilon)
}

func TestEvaluate_SensitiveColumnDeIdentified(t *testing.T) {
	e := newTestEngine(t, "default_epsilon: 1.0\nsensitive_columns: [\"ssn\"]\n")
	d := e.Evaluate(analyzer.AnalysisResult{IsValid: true, Tables: []string{"customers"}, SelectColumns: []string{"ssn"}}, nil, "analyst", Context{})
	assert.Equal(t, ActionDeID, d.Action)
	assert.Equal(t, []string{"ssn"}, d.Params.Columns)
}

func TestEvaluate_DefaultPass(t *testing.T) {
	e := newTestEngine(t, "default_epsilon: 1.0\n")
	d := e.Evaluate(analyzer.AnalysisResult{IsValid: true, Tables: []string{"orders"}, SelectColumns: []string{"id"}}, nil, "analyst", Context{})
	assert.Equal(t, ActionPass, d.Action)
}

func TestEvaluate_ColumnPatternMatch(t *testing.T) {
	e := newTestEngine(t, `
default_epsilon: 1.0
column_patterns:
  - pattern: "^email$"
    privacy_method: "mask_email"
`)
	d := e.Evaluate(analyzer.AnalysisResult{IsValid: true, Tables: []string{"customers"}, SelectColumns: []string{"email"}}, nil, "analyst", Context{})
	assert.Equal(t, ActionDeID, d.Action)
	assert.Equal(t, "mask_email", d.Params.Method)
}

func TestResolve_RejectBeatsDP(t *testing.T) {
	d := Resolve(Decision{Action: ActionDP, Params: Params{Epsilon: 1.0}}, Decision{Action: ActionReject})
	assert.Equal(t, ActionReject, d.Action)
}

func TestResolve_CombinesDPEpsilonAsMinimum(t *testing.T) {
	d := Resolve(
		Decision{Action: ActionDP, Params: Params{Epsilon: 1.5}},
		Decision{Action: ActionDP, Params: Params{Epsilon: 0.5}},
	)
	assert.Equal(t, ActionDP, d.Action)
	assert.Equal(t, 0.5, d.Params.Epsilon)
}
