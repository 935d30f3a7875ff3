// security_config.go — Capability-driven security gate backing C6.
//
// The dispatcher consults a Gate before invoking any tool whose descriptor
// names a security_requirement (spec §4.6 step 2). Capabilities are named
// constants rather than free-form strings. Tool registration does not check
// a descriptor's capability name; Gate.Allowed treats an unknown name as
// disabled.
package security

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Capability is one of the closed set of gated operations spec §6's tool
// table can require.
type Capability string

const (
	CapabilityAllowTestExecution Capability = "allow_test_execution"
	CapabilityAllowMenuExecution Capability = "allow_menu_execution"
)

// Config is the persisted, human-editable capability configuration. It is
// never mutated by an in-process tool call — only by an operator editing
// the file on disk, matching the teacher's MCP-mode write-block convention.
type Config struct {
	Version      string          `json:"version" yaml:"version"`
	Capabilities map[string]bool `json:"capabilities" yaml:"capabilities"`
}

// DefaultConfig denies every gated capability until an operator opts in.
func DefaultConfig() Config {
	return Config{
		Version: "1",
		Capabilities: map[string]bool{
			string(CapabilityAllowTestExecution): false,
			string(CapabilityAllowMenuExecution): false,
		},
	}
}

// LoadConfig reads a capability configuration from path. A missing file is
// not an error — it yields DefaultConfig so a fresh project starts locked
// down.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading security config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing security config: %w", err)
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = map[string]bool{}
	}
	return cfg, nil
}

// Gate answers capability checks for the dispatcher. It is safe for
// concurrent use; Reload swaps the underlying config atomically under lock
// so in-flight checks never observe a half-written config.
type Gate struct {
	mu  sync.RWMutex
	cfg Config
}

// NewGate wraps an already-loaded config.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Reload replaces the gate's configuration, e.g. with one loaded again by
// LoadConfig after an operator edits the file. The gate never re-reads the
// file on its own.
func (g *Gate) Reload(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

// Allowed reports whether the given capability is enabled. An unknown
// capability name is treated as disabled (fail closed).
func (g *Gate) Allowed(cap Capability) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg.Capabilities[string(cap)]
}

// AuditEvent records a single security-gate decision for later inspection.
// This generalizes the teacher's SecurityAuditEvent from CSP/whitelist
// decisions to tool-dispatch capability decisions.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
}

var (
	auditLog []AuditEvent
	auditMu  sync.Mutex
)

// LogAuditEvent appends a security-gate decision to the in-memory audit log.
func LogAuditEvent(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	auditLog = append(auditLog, event)
}

// AuditEvents returns a copy of the recorded audit events.
func AuditEvents() []AuditEvent {
	auditMu.Lock()
	defer auditMu.Unlock()
	events := make([]AuditEvent, len(auditLog))
	copy(events, auditLog)
	return events
}

// ClearAuditEvents clears the in-memory audit log (used by tests).
func ClearAuditEvents() {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditLog = nil
}
