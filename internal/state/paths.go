// Package state centralizes filesystem locations for the bridge daemon's
// own runtime artifacts (logs, PID file) and for the per-project persisted
// state the lifecycle controller and sandbox read and write (spec §6).
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// StateDirEnv overrides the default runtime state root for daemon-owned
	// artifacts (logs, PID file) that are not project-scoped.
	StateDirEnv = "BRIDGE_STATE_DIR"

	xdgStateHomeEnv = "XDG_STATE_HOME"
	appName         = "editor-bridge"
)

// RootDir returns the runtime state root for daemon-owned artifacts.
// Resolution order:
//  1. BRIDGE_STATE_DIR (if set)
//  2. XDG_STATE_HOME/editor-bridge (if XDG_STATE_HOME is set)
//  3. os.UserConfigDir()/editor-bridge (cross-platform fallback)
func RootDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv(StateDirEnv)); override != "" {
		return normalizePath(override)
	}

	if xdg := strings.TrimSpace(os.Getenv(xdgStateHomeEnv)); xdg != "" {
		root, err := normalizePath(xdg)
		if err != nil {
			return "", err
		}
		return filepath.Join(root, appName), nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	root, err := normalizePath(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, appName), nil
}

// LogsDir returns the logs directory under RootDir.
func LogsDir() (string, error) {
	return InRoot("logs")
}

// DefaultLogFile returns the default structured log file path.
func DefaultLogFile() (string, error) {
	return InRoot("logs", "bridge.jsonl")
}

// CrashLogFile returns the panic crash log file path.
func CrashLogFile() (string, error) {
	return InRoot("logs", "crash.log")
}

// PIDFile returns the PID file path for the given server port.
func PIDFile(port int) (string, error) {
	return InRoot("run", "bridge-"+strconv.Itoa(port)+".pid")
}

// InRoot returns a path rooted under RootDir with additional path elements.
func InRoot(parts ...string) (string, error) {
	root, err := RootDir()
	if err != nil {
		return "", err
	}
	all := make([]string, 0, len(parts)+1)
	all = append(all, root)
	all = append(all, parts...)
	return filepath.Join(all...), nil
}

// ProjectPaths resolves the persisted-state layout spec §6 fixes relative
// to a single host-project root, e.g. the directory the host editor has
// open. Every path here lives inside that project, not under RootDir.
type ProjectPaths struct {
	Root string
}

// NewProjectPaths validates and wraps a project root directory.
func NewProjectPaths(root string) (ProjectPaths, error) {
	abs, err := normalizePath(root)
	if err != nil {
		return ProjectPaths{}, fmt.Errorf("invalid project root: %w", err)
	}
	return ProjectPaths{Root: abs}, nil
}

// SettingsFileJSON returns <projectRoot>/UserSettings/UnityMcpSettings.json.
func (p ProjectPaths) SettingsFileJSON() string {
	return filepath.Join(p.Root, "UserSettings", "UnityMcpSettings.json")
}

// SettingsFileYAML returns <projectRoot>/UserSettings/UnityMcpSettings.yaml.
func (p ProjectPaths) SettingsFileYAML() string {
	return filepath.Join(p.Root, "UserSettings", "UnityMcpSettings.yaml")
}

// SecurityConfigFile returns <projectRoot>/UserSettings/BridgeSecurity.json,
// the operator-editable capability configuration security.Gate loads.
func (p ProjectPaths) SecurityConfigFile() string {
	return filepath.Join(p.Root, "UserSettings", "BridgeSecurity.json")
}

// CompilingLock, DomainReloadLock, and ServerStartingLock are the three
// presence-flag files under Temp/ (§6). Their contents are never read;
// only existence is meaningful.
func (p ProjectPaths) CompilingLock() string {
	return filepath.Join(p.Root, "Temp", "compiling.lock")
}

func (p ProjectPaths) DomainReloadLock() string {
	return filepath.Join(p.Root, "Temp", "domainreload.lock")
}

func (p ProjectPaths) ServerStartingLock() string {
	return filepath.Join(p.Root, "Temp", "serverstarting.lock")
}

// CompileResultFile returns the path the compile tool polls/writes for a
// given correlation id.
func (p ProjectPaths) CompileResultFile(requestID string) string {
	return filepath.Join(p.Root, "Temp", "compile-result-"+requestID+".json")
}

// TempDir returns <projectRoot>/Temp, creating it if absent.
func (p ProjectPaths) TempDir() (string, error) {
	dir := filepath.Join(p.Root, "Temp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// UserSettingsDir returns <projectRoot>/UserSettings, creating it if absent.
func (p ProjectPaths) UserSettingsDir() (string, error) {
	dir := filepath.Join(p.Root, "UserSettings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func normalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path %q: %w", path, err)
	}
	return filepath.Clean(absPath), nil
}
