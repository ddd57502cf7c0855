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
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veilquery/mediator/internal/obslog"
)

// ReloadCallback is invoked after a successful reload with the old and new
// documents, still inside the atomic-swap guarantee (readers never observe
// a torn config).
type ReloadCallback func(old, new *Document)

// Manager owns the current configuration document and its hot-reload
// lifecycle. Readers call Get/Snapshot; writers call Reload/UpdateConfig.
type Manager struct {
	path string

	current atomic.Pointer[Document]

	mu        sync.Mutex
	callbacks []ReloadCallback
	lastMod   time.Time

	stopCh chan struct{}
	doneCh chan struct{}

	log *obslog.Logger
}

// NewManager loads path once at construction. If the source is missing or
// unreadable, the manager initializes with DefaultDocument and the error
// is swallowed (documented failure mode).
func NewManager(path string) *Manager {
	m := &Manager{
		path: path,
		log:  obslog.New("config"),
	}
	doc, modTime, err := loadDocument(path)
	if err != nil {
		m.log.Warn("using default configuration", map[string]any{"path": path, "error": err.Error()})
		doc = DefaultDocument()
	} else {
		m.lastMod = modTime
	}
	m.current.Store(doc)
	return m
}

func loadDocument(path string) (*Document, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, err
	}
	if doc.ClassificationRules == nil {
		doc.ClassificationRules = DefaultDocument().ClassificationRules
	}
	return &doc, info.ModTime(), nil
}

// Snapshot returns the currently active configuration document. The
// returned pointer is never mutated in place.
func (m *Manager) Snapshot() *Document {
	return m.current.Load()
}

// Get reads a single value out of the current document by key, or returns
// def if the key has no configured value. Supported keys mirror Document
// fields the policy engine needs most often.
func (m *Manager) Get(key string, def interface{}) interface{} {
	doc := m.Snapshot()
	switch key {
	case "default_epsilon":
		return doc.DefaultEpsilon
	case "sensitive_columns":
		return doc.SensitiveColumns
	default:
		return def
	}
}

// OnReload registers a callback invoked after every successful reload.
func (m *Manager) OnReload(cb ReloadCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Reload re-reads the source document and fires registered callbacks.
// Errors are swallowed and the previous configuration remains active
// (documented failure mode).
func (m *Manager) Reload() {
	doc, modTime, err := loadDocument(m.path)
	if err != nil {
		m.log.Warn("reload failed, keeping previous configuration", map[string]any{"error": err.Error()})
		return
	}

	old := m.current.Load()
	m.current.Store(doc)
	m.lastMod = modTime

	m.mu.Lock()
	callbacks := append([]ReloadCallback(nil), m.callbacks...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, doc)
	}
	m.log.Info("configuration reloaded", map[string]any{"path": m.path})
}

// UpdateConfig applies an in-process patch to the current document and
// fires reload callbacks, without touching the backing file.
func (m *Manager) UpdateConfig(patch func(*Document)) {
	old := m.current.Load()
	next := *old
	patch(&next)
	m.current.Store(&next)

	m.mu.Lock()
	callbacks := append([]ReloadCallback(nil), m.callbacks...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(old, &next)
	}
}

// StartWatcher starts a background goroutine that polls the source file's
// modification time once per second and triggers Reload when it advances.
// Call StopWatcher to join it with a bounded deadline.
func (m *Manager) StartWatcher() {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				info, err := os.Stat(m.path)
				if err != nil {
					continue
				}
				if info.ModTime().After(m.lastMod) {
					m.Reload()
				}
			}
		}
	}()
}

// StopWatcher signals the watcher goroutine to stop and joins it with a
// bounded deadline of 2 seconds.
func (m *Manager) StopWatcher() {
	m.mu.Lock()
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.stopCh = nil
	m.doneCh = nil
	m.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		m.log.Warn("watcher did not stop within deadline", nil)
	}
}
