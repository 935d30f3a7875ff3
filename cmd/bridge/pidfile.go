// pidfile.go — PID file lifecycle, trimmed from the teacher's
// cleanupStalePIDFile/writePIDFile pair (cmd/dev-console/main_connection_mcp.go)
// down to what start/stop/status need: no port-owner cross-check since this
// bridge has no HTTP API to probe for ownership.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/brennhill/editor-bridge/internal/state"
)

func writePIDFile(port int) error {
	path, err := state.PIDFile(port)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile(port int) {
	path, err := state.PIDFile(port)
	if err != nil {
		return
	}
	_ = os.Remove(path)
}

// readPID returns the PID recorded for port, or 0 if no PID file exists.
func readPID(port int) (int, error) {
	path, err := state.PIDFile(port)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt PID file %s: %w", path, err)
	}
	return pid, nil
}

// processAlive reports whether pid names a live process, via the
// signal-0-probe convention (sends no actual signal).
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, os.PathSeparator)
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
