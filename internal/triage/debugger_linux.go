//go:build linux

package triage

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// DebuggerAttached reports whether a tracer is attached to the process.
func DebuggerAttached() bool {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	return tracerAttached(bufio.NewScanner(f))
}

func tracerAttached(sc *bufio.Scanner) bool {
	for sc.Scan() {
		rest, ok := strings.CutPrefix(sc.Text(), "TracerPid:")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(rest))
		return err == nil && pid != 0
	}
	return false
}
