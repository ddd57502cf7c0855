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

package driver

import (
	"fmt"
	"math/rand"

	"github.com/veilquery/mediator/internal/analyzer"
	"github.com/veilquery/mediator/internal/deid"
	"github.com/veilquery/mediator/internal/executor"
	"github.com/veilquery/mediator/internal/mechanisms"
	"github.com/veilquery/mediator/internal/policy"
)

// transform applies the decision's privacy action to the raw executor
// result (spec.md §4.8 step 6), returning the protected result and the
// privacy metadata describing what was done.
func (d *Driver) transform(analysis analyzer.AnalysisResult, decision policy.Decision, result executor.Result, multiTableSensitivity float64) (interface{}, PrivacyInfo) {
	switch decision.Action {
	case policy.ActionDP:
		return d.applyDP(analysis, decision, result, multiTableSensitivity)
	case policy.ActionDeID:
		return applyDeID(decision, result)
	default:
		return result.Data, PrivacyInfo{Method: "none"}
	}
}

func (d *Driver) applyDP(analysis analyzer.AnalysisResult, decision policy.Decision, result executor.Result, multiTableSensitivity float64) (interface{}, PrivacyInfo) {
	agg := analyzer.AggCount
	if len(analysis.Aggregations) > 0 {
		agg = analysis.Aggregations[0]
	}
	column := ""
	if len(analysis.SelectColumns) > 0 {
		column = analysis.SelectColumns[0]
	}

	effSensitivity := decision.Params.Sensitivity
	if d.sensAnalyzer != nil {
		effSensitivity = d.sensAnalyzer.Analyze(agg, column)
	}
	effSensitivity *= multiTableSensitivity

	mechanism := decision.Params.Mechanism
	if mechanism == "" {
		mechanism = "laplace"
	}

	epsilon := decision.Params.Epsilon
	noised := d.protectedValue(result.Data, effSensitivity, epsilon)

	privacyInfo := PrivacyInfo{
		Method:           mechanism,
		Epsilon:          &epsilon,
		Sensitivity:      &effSensitivity,
		ColumnsProcessed: analysis.SelectColumns,
	}
	return noised, privacyInfo
}

// protectedValue adds Laplace noise to a scalar, or to every numeric field
// of a row-set, leaving non-numeric fields untouched.
func (d *Driver) protectedValue(data interface{}, sensitivity, epsilon float64) interface{} {
	switch v := data.(type) {
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(v))
		for i, row := range v {
			newRow := make(map[string]interface{}, len(row))
			for k, val := range row {
				if num, ok := asFloat64(val); ok {
					newRow[k] = d.noise(func(rng *rand.Rand) float64 {
						return mechanisms.Laplace(rng, num, sensitivity, epsilon)
					})
				} else {
					newRow[k] = val
				}
			}
			out[i] = newRow
		}
		return out
	default:
		if num, ok := asFloat64(v); ok {
			return d.noise(func(rng *rand.Rand) float64 {
				return mechanisms.Laplace(rng, num, sensitivity, epsilon)
			})
		}
		return v
	}
}

func applyDeID(decision policy.Decision, result executor.Result) (interface{}, PrivacyInfo) {
	rows, ok := result.Data.([]map[string]interface{})
	privacyInfo := PrivacyInfo{Method: decision.Params.Method, ColumnsProcessed: decision.Params.Columns}

	if !ok {
		// A scalar result with a DeID decision (e.g. a single sensitive field
		// selected without GROUP BY) is de-identified in place.
		if s, ok := asString(result.Data); ok {
			return deid.ApplyMethod(decision.Params.Method, s, nil), privacyInfo
		}
		return result.Data, privacyInfo
	}

	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		newRow := make(map[string]interface{}, len(row))
		for k, v := range row {
			if containsColumn(decision.Params.Columns, k) {
				if s, ok := asString(v); ok {
					newRow[k] = deid.ApplyMethod(decision.Params.Method, s, nil)
					continue
				}
			}
			newRow[k] = v
		}
		out[i] = newRow
	}
	return out, privacyInfo
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case nil:
		return "", false
	default:
		return fmt.Sprintf("%v", s), true
	}
}
