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

package deid

import "strings"

// Row is a single result row keyed by column name.
type Row map[string]string

func equivalenceKey(row Row, quasiIdentifiers []string) string {
	parts := make([]string, len(quasiIdentifiers))
	for i, col := range quasiIdentifiers {
		parts[i] = row[col]
	}
	return strings.Join(parts, "\x1f")
}

// KAnonymizer enforces that every equivalence class over a set of
// quasi-identifier columns has at least k members, suppressing the
// quasi-identifier values of any smaller class.
type KAnonymizer struct {
	K int
}

// NewKAnonymizer builds a KAnonymizer requiring classes of at least k rows.
func NewKAnonymizer(k int) *KAnonymizer {
	return &KAnonymizer{K: k}
}

// Apply groups rows by quasiIdentifiers and replaces the quasi-identifier
// values of any under-sized class with the suppression sentinel.
func (ka *KAnonymizer) Apply(rows []Row, quasiIdentifiers []string) []Row {
	classes := make(map[string][]int)
	for i, row := range rows {
		key := equivalenceKey(row, quasiIdentifiers)
		classes[key] = append(classes[key], i)
	}

	out := make([]Row, len(rows))
	for i, row := range rows {
		clone := make(Row, len(row))
		for k, v := range row {
			clone[k] = v
		}
		out[i] = clone
	}

	for _, indices := range classes {
		if len(indices) >= ka.K {
			continue
		}
		for _, i := range indices {
			for _, col := range quasiIdentifiers {
				out[i][col] = suppressedSentinel
			}
		}
	}
	return out
}

// CheckKAnonymity reports whether every equivalence class has at least k
// members.
func (ka *KAnonymizer) CheckKAnonymity(rows []Row, quasiIdentifiers []string) bool {
	classes := make(map[string]int)
	for _, row := range rows {
		classes[equivalenceKey(row, quasiIdentifiers)]++
	}
	min := -1
	for _, count := range classes {
		if min == -1 || count < min {
			min = count
		}
	}
	return min == -1 || min >= ka.K
}

// LDiversifier enforces that within each quasi-identifier equivalence
// class, the sensitive attribute has at least l distinct values.
type LDiversifier struct {
	L int
}

// NewLDiversifier builds an LDiversifier requiring l distinct sensitive
// values per class.
func NewLDiversifier(l int) *LDiversifier {
	return &LDiversifier{L: l}
}

// Apply groups rows by quasiIdentifiers and, for any class whose sensitive
// attribute has fewer than l distinct values, replaces that attribute with
// the suppression sentinel for every row in the class.
func (ld *LDiversifier) Apply(rows []Row, quasiIdentifiers []string, sensitiveColumn string) []Row {
	classes := make(map[string][]int)
	for i, row := range rows {
		key := equivalenceKey(row, quasiIdentifiers)
		classes[key] = append(classes[key], i)
	}

	out := make([]Row, len(rows))
	for i, row := range rows {
		clone := make(Row, len(row))
		for k, v := range row {
			clone[k] = v
		}
		out[i] = clone
	}

	for _, indices := range classes {
		distinct := make(map[string]bool)
		for _, i := range indices {
			distinct[rows[i][sensitiveColumn]] = true
		}
		if len(distinct) >= ld.L {
			continue
		}
		for _, i := range indices {
			out[i][sensitiveColumn] = suppressedSentinel
		}
	}
	return out
}
