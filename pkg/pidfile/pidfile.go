// Package pidfile enforces the singleton-instance convention via an
// advisory pid file. It gates startup only, never query correctness.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Write records the current pid at path. An existing file naming a live
// process aborts with an error; a stale file (dead pid, unparsable
// content) is replaced.
func Write(path string) error {
	if pid, ok := readPid(path); ok && processAlive(pid) {
		return fmt.Errorf("pidfile %s: another instance is running with pid %d", path, pid)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("write pidfile %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write pidfile %s: %w", path, err)
	}
	return nil
}

// Remove deletes the pid file, but only when it still names this
// process. A missing file is not an error.
func Remove(path string) error {
	if pid, ok := readPid(path); ok && pid != os.Getpid() {
		return fmt.Errorf("pidfile %s: owned by pid %d, refusing to remove", path, pid)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pidfile %s: %w", path, err)
	}
	return nil
}

func readPid(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive probes the pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
