// Package sandbox implements the dynamic-code security policy (C9): three
// levels deciding which packages are linkable for ad-hoc submitted source,
// and an AST walker flagging forbidden constructs under the Restricted
// level (spec §4.9).
package sandbox

// Level is one of the closed three-level security policy.
type Level int

const (
	Disabled Level = iota
	Restricted
	FullAccess
)

func (l Level) String() string {
	switch l {
	case Disabled:
		return "Disabled"
	case Restricted:
		return "Restricted"
	case FullAccess:
		return "FullAccess"
	default:
		return "Unknown"
	}
}

// ParseLevel converts a config string into a Level, defaulting to the
// safest option (Disabled) for anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "Restricted":
		return Restricted
	case "FullAccess":
		return FullAccess
	default:
		return Disabled
	}
}

// allowPrefixes are the base-runtime and host-editor-public package path
// prefixes admitted under Restricted (spec §4.9's allow-list).
var allowPrefixes = []string{
	"fmt", "strings", "strconv", "errors", "time", "sort", "math",
	"encoding/json", "context", "bytes", "unicode",
	"github.com/brennhill/editor-bridge/internal/hostapi",
}

// denyPrefixes override the allow-list (spec's "strict dominance" property):
// filesystem, network, threading, process-diagnostics, reflection-emit,
// codegen, and registry-equivalent namespaces for a Go runtime.
var denyPrefixes = []string{
	"os", "os/exec", "os/user", "net", "net/http", "net/rpc",
	"syscall", "reflect", "plugin", "unsafe",
	"runtime/debug", "runtime/pprof", "go/build", "go/parser", "go/types",
	"debug/elf", "debug/macho", "debug/pe",
}

// dangerousCalls is the fixed lookup table of (package, func) pairs that are
// a violation regardless of allow/deny prefix classification, mirroring
// spec's File.Delete / Process.Start / Assembly.Load / Environment.Exit
// examples translated to this runtime's standard library.
var dangerousCalls = map[string]bool{
	"os.Remove":           true,
	"os.RemoveAll":        true,
	"os.Exit":             true,
	"os.Rename":           true,
	"exec.Command":        true,
	"exec.CommandContext": true,
	"plugin.Open":         true,
	"net.Dial":            true,
	"net.Listen":          true,
	"syscall.Exec":        true,
}

// dangerousTypes is the fixed set of type references that are a violation
// even without an accompanying call (spec's "identifier resolves to a
// dangerous type" clause).
var dangerousTypes = map[string]bool{
	"os.Process":  true,
	"exec.Cmd":    true,
	"net.Conn":    true,
	"net.Listener": true,
	"reflect.Value": true,
	"plugin.Plugin": true,
}

// isUserProjectPath classifies an import path as user-project scope vs.
// library scope for Restricted's linkable-module decision. This module's
// own path is the only "local" package available to a submitted snippet;
// everything else resolved through the allow/deny lists above.
func isUserProjectPath(path string) bool {
	return hasPrefix(path, "github.com/brennhill/editor-bridge")
}

func matchesAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if hasPrefix(path, p) {
			return true
		}
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Admitted reports whether a package path is linkable under Restricted,
// applying deny-list strict dominance over the allow-list and over
// user-project classification (spec §8 property 7).
func Admitted(path string) bool {
	if matchesAnyPrefix(path, denyPrefixes) {
		return false
	}
	return isUserProjectPath(path) || matchesAnyPrefix(path, allowPrefixes)
}
