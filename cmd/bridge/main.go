// main.go — CLI entry point for the editor-bridge daemon. Trimmed to
// start/stop/status of the bridge server only; command registration, shell
// completion, and cache files are out of scope.
package main

import (
	"fmt"
	"os"
)

var version = "0.1.0"

const usageText = `editor-bridge — JSON-RPC bridge to a host editor

Usage:
  bridge start [--project <path>] [--port <port>] [--sandbox-level <level>]
  bridge stop  [--project <path>]
  bridge status [--project <path>]

Flags:
  --project <path>        Host project root (default: current directory)
  --port <port>           Preferred listen port, 8700-9100 (default: 8700)
  --sandbox-level <level> Disabled|Restricted|FullAccess (default: Disabled)
  --version               Show version
  --help                  Show this help
`

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the entry point proper, separated from main for testability.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Printf("bridge %s\n", version)
			return 0
		}
		if a == "--help" || a == "-h" {
			fmt.Print(usageText)
			return 0
		}
	}

	cmd := args[0]
	flags, err := parseFlags(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	switch cmd {
	case "start":
		return runStart(flags)
	case "stop":
		return runStop(flags)
	case "status":
		return runStatus(flags)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}
}

type cliFlags struct {
	project      string
	port         int
	sandboxLevel string
}

func parseFlags(args []string) (cliFlags, error) {
	f := cliFlags{port: 8700, sandboxLevel: "Disabled"}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--project":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--project requires a value")
			}
			i++
			f.project = args[i]
		case "--port":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--port requires a value")
			}
			i++
			if _, err := fmt.Sscanf(args[i], "%d", &f.port); err != nil {
				return f, fmt.Errorf("invalid --port %q: %w", args[i], err)
			}
		case "--sandbox-level":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--sandbox-level requires a value")
			}
			i++
			f.sandboxLevel = args[i]
		default:
			return f, fmt.Errorf("unknown flag %q", args[i])
		}
	}
	if f.project == "" {
		wd, err := os.Getwd()
		if err != nil {
			return f, fmt.Errorf("cannot determine working directory: %w", err)
		}
		f.project = wd
	}
	return f, nil
}
