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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
default_epsilon: 2.5
sensitive_columns: ["ssn", "email"]
roles:
  analyst:
    epsilon: 0.5
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestManager_MissingFileUsesDefault(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	doc := m.Snapshot()
	assert.Equal(t, 1.0, doc.DefaultEpsilon)
	assert.Contains(t, doc.SensitiveColumns, "ssn")
}

func TestManager_LoadsDocument(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	m := NewManager(path)
	doc := m.Snapshot()
	assert.Equal(t, 2.5, doc.DefaultEpsilon)
	assert.Equal(t, []string{"ssn", "email"}, doc.SensitiveColumns)
}

func TestManager_ReloadFiresCallbackAtomically(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	m := NewManager(path)

	var observedOld, observedNew *Document
	m.OnReload(func(old, new *Document) {
		observedOld, observedNew = old, new
	})

	// Modify the file and bump mtime so the watcher (and a manual Reload)
	// would notice.
	require.NoError(t, os.WriteFile(path, []byte("default_epsilon: 9.0\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	m.Reload()

	require.NotNil(t, observedOld)
	require.NotNil(t, observedNew)
	assert.Equal(t, 2.5, observedOld.DefaultEpsilon)
	assert.Equal(t, 9.0, observedNew.DefaultEpsilon)
	assert.Equal(t, 9.0, m.Snapshot().DefaultEpsilon)
}

func TestManager_ReloadSwallowsMissingFileError(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	m := NewManager(path)
	require.NoError(t, os.Remove(path))

	m.Reload()
	assert.Equal(t, 2.5, m.Snapshot().DefaultEpsilon)
}

func TestManager_UpdateConfigPatchesInProcess(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	m := NewManager(path)

	m.UpdateConfig(func(d *Document) {
		d.SensitiveColumns = append(d.SensitiveColumns, "phone")
	})

	assert.Contains(t, m.Snapshot().SensitiveColumns, "phone")
}

func TestManager_StartStopWatcher(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	m := NewManager(path)
	m.StartWatcher()
	m.StopWatcher()
}
