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

// Package mechanisms implements the pure differential-privacy noise
// mechanisms the driver applies to query results.
package mechanisms

import (
	"math"
	"math/rand"
)

// Laplace adds Laplace(0, sensitivity/epsilon) noise to value.
func Laplace(rng *rand.Rand, value, sensitivity, epsilon float64) float64 {
	scale := sensitivity / epsilon
	return value + sampleLaplace(rng, scale)
}

func sampleLaplace(rng *rand.Rand, scale float64) float64 {
	// Inverse-CDF sampling: u in (-0.5, 0.5) maps to -scale*sign(u)*ln(1-2|u|).
	u := rng.Float64() - 0.5
	if u >= 0 {
		return -scale * math.Log(1-2*u)
	}
	return scale * math.Log(1+2*u)
}

// Gaussian adds N(0, sigma^2) noise to value, where sigma follows the
// classical Gaussian mechanism's calibration for (epsilon, delta)-DP:
// sigma = sensitivity * sqrt(2 ln(1.25/delta)) / epsilon.
func Gaussian(rng *rand.Rand, value, sensitivity, epsilon, delta float64) float64 {
	sigma := sensitivity * math.Sqrt(2*math.Log(1.25/delta)) / epsilon
	return value + rng.NormFloat64()*sigma
}

// Exponential selects one candidate index from utilities using the
// exponential mechanism, with probability proportional to
// exp(epsilon*utility/(2*sensitivity)). Utilities are shifted by their max
// before exponentiating for numerical stability.
func Exponential(rng *rand.Rand, utilities []float64, epsilon, sensitivity float64) int {
	if len(utilities) == 0 {
		return -1
	}
	max := utilities[0]
	for _, u := range utilities[1:] {
		if u > max {
			max = u
		}
	}

	weights := make([]float64, len(utilities))
	var total float64
	for i, u := range utilities {
		w := math.Exp(epsilon * (u - max) / (2 * sensitivity))
		weights[i] = w
		total += w
	}

	target := rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target <= cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// SparseVector implements the Above-Threshold / Sparse Vector Technique.
// It holds the noisy threshold and answers a bounded number of above-
// threshold queries before it stops responding true.
type SparseVector struct {
	rng           *rand.Rand
	threshold     float64
	noisyThreshold float64
	sensitivity   float64
	epsilonQuery  float64
	maxAbove      int
	aboveCount    int
}

// NewSparseVector splits the total epsilon half for the one-shot threshold
// noise and half for each query's noise, scaled by maxAbove (c) positives.
func NewSparseVector(rng *rand.Rand, threshold, sensitivity, epsilonTotal float64, maxAbove int) *SparseVector {
	epsilonT := epsilonTotal / 2
	epsilonQ := epsilonTotal / 2
	thresholdScale := 2 * sensitivity / epsilonT
	return &SparseVector{
		rng:            rng,
		threshold:      threshold,
		noisyThreshold: threshold + sampleLaplace(rng, thresholdScale),
		sensitivity:    sensitivity,
		epsilonQuery:   epsilonQ,
		maxAbove:       maxAbove,
	}
}

// Query answers whether value exceeds the noisy threshold, adding
// per-query Laplace noise scaled by 4*c*sensitivity/epsilon_Q. Once
// maxAbove positives have been emitted, it always returns false.
func (s *SparseVector) Query(value float64) bool {
	if s.aboveCount >= s.maxAbove {
		return false
	}
	scale := 4 * float64(s.maxAbove) * s.sensitivity / s.epsilonQuery
	noisyValue := value + sampleLaplace(s.rng, scale)
	if noisyValue > s.noisyThreshold {
		s.aboveCount++
		return true
	}
	return false
}
