package main

import (
	"fmt"
)

func runStatus(f cliFlags) int {
	pid, err := readPID(f.port)
	if err != nil {
		fmt.Printf("status: error reading PID file: %v\n", err)
		return 1
	}
	if pid == 0 {
		fmt.Printf("status: not running (no PID file for port %d)\n", f.port)
		return 1
	}
	if !processAlive(pid) {
		fmt.Printf("status: stale PID file for port %d (pid %d not alive)\n", f.port, pid)
		return 1
	}
	fmt.Printf("status: running (pid %d, port %d)\n", pid, f.port)
	return 0
}
