package server

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// instanceLock enforces one running controller per host through a pid
// file, and lets the stop/restart/status subcommands address a controller
// started earlier.
type instanceLock struct {
	path string
}

func newInstanceLock() *instanceLock {
	return &instanceLock{path: filepath.Join(runDir(), "server.pid")}
}

// runDir picks the per-host directory holding the pid file
func runDir() string {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("PROGRAMDATA"); dir != "" {
			return filepath.Join(dir, "Remcon")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local", "Remcon")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "remcon")
	}
	return filepath.Join(os.TempDir(), "remcon")
}

// Acquire records this process in the pid file. The caller checks Alive
// first; Acquire itself only claims the slot.
func (l *instanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("instance lock: %w", err)
	}
	return os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// Release removes the pid file
func (l *instanceLock) Release() {
	os.Remove(l.path)
}

// Alive reports the pid of a running controller recorded in the pid file.
// A stale or unreadable pid file is cleaned up and reported as not alive.
func (l *instanceLock) Alive() (int, bool) {
	pid, err := l.readPID()
	if err != nil {
		return 0, false
	}
	if !processAlive(pid) {
		l.Release()
		return 0, false
	}
	return pid, true
}

// Terminate stops the controller recorded in the pid file
func (l *instanceLock) Terminate() error {
	pid, ok := l.Alive()
	if !ok {
		return fmt.Errorf("no running server")
	}
	if err := terminateProcess(pid); err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}
	l.Release()
	return nil
}

func (l *instanceLock) readPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive probes whether pid refers to a live process
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if runtime.GOOS == "windows" {
		out, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid)).Output()
		if err != nil {
			return false
		}
		return strings.Contains(string(out), strconv.Itoa(pid))
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// terminateProcess asks pid to exit, escalating when the polite signal is
// refused.
func terminateProcess(pid int) error {
	if runtime.GOOS == "windows" {
		return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/F").Run()
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return proc.Signal(syscall.SIGKILL)
	}
	return nil
}
