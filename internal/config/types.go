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

// Package config loads, hot-reloads, and dispatches change notifications
// for the mediator's policy configuration document.
package config

// Classification is the sensitivity tier of a table or column.
type Classification string

const (
	ClassPublic       Classification = "PUBLIC"
	ClassInternal     Classification = "INTERNAL"
	ClassConfidential Classification = "CONFIDENTIAL"
	ClassRestricted   Classification = "RESTRICTED"
)

// severity orders classifications so the policy engine can take a max.
var severity = map[Classification]int{
	ClassPublic:       0,
	ClassInternal:     1,
	ClassConfidential: 2,
	ClassRestricted:   3,
}

// MoreSevere reports whether a is a stricter classification than b.
func (a Classification) MoreSevere(b Classification) bool {
	return severity[a] > severity[b]
}

// Rule is a generic policy rule entry (reserved for future rule types
// beyond column_patterns/table_policies, which are modeled explicitly).
type Rule struct {
	Name   string                 `yaml:"name"`
	Action string                 `yaml:"action"`
	Params map[string]interface{} `yaml:"params"`
}

// Role describes per-role budget and access settings.
type Role struct {
	Epsilon          *float64 `yaml:"epsilon"`
	Delta            *float64 `yaml:"delta"`
	MaxQueriesPerDay int      `yaml:"max_queries_per_day"`
	AllowedTables    []string `yaml:"allowed_tables"`
	DeniedTables     []string `yaml:"denied_tables"`
	AllowedColumns   []string `yaml:"allowed_columns"`
	DeniedColumns    []string `yaml:"denied_columns"`
	Budget           *float64 `yaml:"budget"`
}

// ColumnPattern matches selected columns by a case-insensitive regex and
// emits a privacy action for them.
type ColumnPattern struct {
	Pattern        string                 `yaml:"pattern"`
	Classification Classification         `yaml:"classification"`
	PrivacyMethod  string                 `yaml:"privacy_method"`
	Params         map[string]interface{} `yaml:"params"`
}

// TablePolicy configures the classification and default epsilon for a table.
type TablePolicy struct {
	Classification  Classification           `yaml:"classification"`
	DefaultEpsilon  float64                  `yaml:"default_epsilon"`
	ColumnPolicies  map[string]ColumnPattern `yaml:"column_policies"`
}

// ClassificationRule configures the epsilon ceiling and raw-access
// allowance for a classification tier.
type ClassificationRule struct {
	Epsilon  float64 `yaml:"epsilon"`
	AllowRaw bool    `yaml:"allow_raw"`
}

// Document is the full structured configuration document (spec §4.4/§6).
type Document struct {
	Rules              []Rule                         `yaml:"rules"`
	SensitiveColumns   []string                       `yaml:"sensitive_columns"`
	DefaultEpsilon     float64                        `yaml:"default_epsilon"`
	Roles              map[string]Role                `yaml:"roles"`
	ColumnPatterns     []ColumnPattern                `yaml:"column_patterns"`
	TablePolicies      map[string]TablePolicy         `yaml:"table_policies"`
	ClassificationRules map[Classification]ClassificationRule `yaml:"classification_rules"`
}

// DefaultDocument returns the documented fallback configuration used when
// the source file is missing or unreadable.
func DefaultDocument() *Document {
	return &Document{
		SensitiveColumns: []string{"name", "email", "phone", "id_card", "ssn", "mobile"},
		DefaultEpsilon:   1.0,
		Roles:            map[string]Role{},
		TablePolicies:    map[string]TablePolicy{},
		ClassificationRules: map[Classification]ClassificationRule{
			ClassPublic:       {Epsilon: 10.0, AllowRaw: true},
			ClassInternal:     {Epsilon: 5.0, AllowRaw: true},
			ClassConfidential: {Epsilon: 1.0, AllowRaw: false},
			ClassRestricted:   {Epsilon: 0.1, AllowRaw: false},
		},
	}
}

// IsSensitiveColumn reports whether column (case-insensitive) is in the
// configured sensitive-column set.
func (d *Document) IsSensitiveColumn(column string) bool {
	for _, c := range d.SensitiveColumns {
		if equalFold(c, column) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
