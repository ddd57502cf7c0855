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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleRows() []Row {
	return []Row{
		{"zip": "94107", "age": "30", "disease": "flu"},
		{"zip": "94107", "age": "30", "disease": "cold"},
		{"zip": "94110", "age": "40", "disease": "flu"},
	}
}

func TestKAnonymizer_SuppressesUndersizedClass(t *testing.T) {
	ka := NewKAnonymizer(2)
	out := ka.Apply(sampleRows(), []string{"zip", "age"})

	assert.Equal(t, "94107", out[0]["zip"])
	assert.Equal(t, "*SUPPRESSED*", out[2]["zip"])
}

func TestKAnonymizer_CheckKAnonymity(t *testing.T) {
	ka := NewKAnonymizer(2)
	assert.False(t, ka.CheckKAnonymity(sampleRows(), []string{"zip", "age"}))

	rows := []Row{
		{"zip": "94107"}, {"zip": "94107"}, {"zip": "94107"},
	}
	assert.True(t, ka.CheckKAnonymity(rows, []string{"zip"}))
}

func TestLDiversifier_SuppressesLowDiversityClass(t *testing.T) {
	rows := []Row{
		{"zip": "94107", "disease": "flu"},
		{"zip": "94107", "disease": "flu"},
		{"zip": "94110", "disease": "flu"},
		{"zip": "94110", "disease": "cold"},
	}
	ld := NewLDiversifier(2)
	out := ld.Apply(rows, []string{"zip"}, "disease")

	assert.Equal(t, "*SUPPRESSED*", out[0]["disease"])
	assert.Equal(t, "*SUPPRESSED*", out[1]["disease"])
	assert.Equal(t, "flu", out[2]["disease"])
	assert.Equal(t, "cold", out[3]["disease"])
}
