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

package mechanisms

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLaplace_IsDeterministicUnderSeededRand(t *testing.T) {
	r1 := rand.New(rand.NewSource(42))
	r2 := rand.New(rand.NewSource(42))

	a := Laplace(r1, 10.0, 1.0, 0.5)
	b := Laplace(r2, 10.0, 1.0, 0.5)
	assert.Equal(t, a, b)
}

func TestLaplace_CentersAroundValueOverManySamples(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	var sum float64
	const n = 20000
	for i := 0; i < n; i++ {
		sum += Laplace(r, 0, 1.0, 1.0)
	}
	mean := sum / n
	assert.InDelta(t, 0.0, mean, 0.1)
}

func TestGaussian_SigmaScalesWithSensitivity(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	var sumSq float64
	const n = 20000
	for i := 0; i < n; i++ {
		noisy := Gaussian(r, 0, 2.0, 1.0, 1e-5)
		sumSq += noisy * noisy
	}
	variance := sumSq / n
	expectedSigma := 2.0 * math.Sqrt(2*math.Log(1.25/1e-5)) / 1.0
	assert.InDelta(t, expectedSigma*expectedSigma, variance, expectedSigma*expectedSigma*0.2)
}

func TestExponential_PrefersHighestUtility(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	counts := make([]int, 3)
	for i := 0; i < 1000; i++ {
		idx := Exponential(r, []float64{0, 0, 100}, 1.0, 1.0)
		counts[idx]++
	}
	assert.Greater(t, counts[2], counts[0]+counts[1])
}

func TestSparseVector_StopsAfterMaxAbove(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	sv := NewSparseVector(r, 0, 1.0, 2.0, 1)

	positives := 0
	for i := 0; i < 50; i++ {
		if sv.Query(1000) {
			positives++
		}
	}
	assert.Equal(t, 1, positives)
}
