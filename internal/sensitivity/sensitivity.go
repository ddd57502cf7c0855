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

// Package sensitivity maps an (aggregation, column) pair to an L1
// sensitivity value used to calibrate the noise mechanisms.
package sensitivity

import (
	"strings"
	"sync"

	"github.com/veilquery/mediator/internal/analyzer"
)

// Bounds is a configured [lower, upper] range for a numeric column.
type Bounds struct {
	Lower float64
	Upper float64
}

// Analyzer maps (aggregation, column) to L1 sensitivity using a
// process-configurable mapping of column name to bounds.
type Analyzer struct {
	mu     sync.RWMutex
	bounds map[string]Bounds
}

// NewAnalyzer creates a sensitivity analyzer with no configured bounds;
// SUM over an unbounded column falls back to the conservative default of 1.
func NewAnalyzer() *Analyzer {
	return &Analyzer{bounds: make(map[string]Bounds)}
}

// SetBounds configures the [lower, upper] bounds for a column.
func (a *Analyzer) SetBounds(column string, bounds Bounds) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bounds[strings.ToLower(column)] = bounds
}

// Analyze returns the L1 sensitivity for one aggregation over one column.
func (a *Analyzer) Analyze(aggregation analyzer.Aggregation, column string) float64 {
	switch aggregation {
	case analyzer.AggCount:
		return 1
	case analyzer.AggSum:
		a.mu.RLock()
		b, ok := a.bounds[strings.ToLower(column)]
		a.mu.RUnlock()
		if ok {
			return b.Upper - b.Lower
		}
		// Documented conservative default when no bounds are configured.
		return 1
	default: // AVG, MIN, MAX
		return 1
	}
}
