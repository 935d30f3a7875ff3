// record.go — Session manager (C7). A single persisted document surviving
// in-process environment resets (spec §4.7, §3). Writes are synchronous:
// Set blocks until the new record is durable on disk before returning,
// because the host's reset signal must never be acknowledged against a
// partially-written record.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Endpoint is one connected client's identity and callback addresses.
type Endpoint struct {
	ClientName     string `json:"client_name" yaml:"client_name"`
	ClientEndpoint string `json:"client_endpoint" yaml:"client_endpoint"`
	PushEndpoint   string `json:"push_receive_server_endpoint" yaml:"push_receive_server_endpoint"`
}

// Record is the persisted key/value document spec §3 fixes.
type Record struct {
	ServerRunning     bool       `json:"server_running" yaml:"server_running"`
	ServerPort        int        `json:"server_port" yaml:"server_port"`
	IsResetInProgress bool       `json:"is_reset_in_progress" yaml:"is_reset_in_progress"`
	IsAfterReset      bool       `json:"is_after_reset" yaml:"is_after_reset"`
	IsReconnecting    bool       `json:"is_reconnecting" yaml:"is_reconnecting"`
	ClientName        string     `json:"client_name,omitempty" yaml:"client_name,omitempty"`
	ClientEndpoints   []Endpoint `json:"client_endpoints" yaml:"client_endpoints"`
}

// Manager owns the single persisted Record for a project. Safe for
// concurrent use; every mutator holds the write lock for the full
// read-modify-write-to-disk cycle.
type Manager struct {
	mu   sync.RWMutex
	path string
	rec  Record
}

// NewManager wraps a session-record path. The format (JSON or YAML) is
// chosen by the path's extension, matching spec §6's dual `.json`/`.yaml`
// layout.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads the record from disk. A missing file is not an error — it
// leaves the Manager holding the zero Record, matching a fresh project.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		m.rec = Record{}
		return nil
	}
	if err != nil {
		return err
	}
	if m.isYAML() {
		return yaml.Unmarshal(data, &m.rec)
	}
	return json.Unmarshal(data, &m.rec)
}

// Get returns a copy of the current record.
func (m *Manager) Get() Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec
}

// Set applies mutate to the record and persists the result synchronously
// before returning. The reset-sequence steps in spec §4.8 call this
// directly so each step is durable before the next begins.
func (m *Manager) Set(mutate func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutate(&m.rec)
	return m.save()
}

// Clear resets the record to its zero value and persists it — the
// explicit-stop post-condition spec §4.7 requires.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = Record{}
	return m.save()
}

// PushEndpoints returns every connected client's push-notification address.
func (m *Manager) PushEndpoints() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rec.ClientEndpoints))
	for _, e := range m.rec.ClientEndpoints {
		if e.PushEndpoint != "" {
			out = append(out, e.PushEndpoint)
		}
	}
	return out
}

func (m *Manager) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(m.path))
	return ext == ".yaml" || ext == ".yml"
}

// save must be called with m.mu held.
func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	var data []byte
	var err error
	if m.isYAML() {
		data, err = yaml.Marshal(m.rec)
	} else {
		data, err = json.MarshalIndent(m.rec, "", "  ")
	}
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
