package server

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func newTestLock(t *testing.T) *instanceLock {
	t.Helper()
	return &instanceLock{path: filepath.Join(t.TempDir(), "server.pid")}
}

func TestInstanceLockAcquireRelease(t *testing.T) {
	lock := newTestLock(t)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	data, err := os.ReadFile(lock.path)
	if err != nil {
		t.Fatalf("pid file missing: %v", err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file holds %q, want own pid", data)
	}

	pid, ok := lock.Alive()
	if !ok || pid != os.Getpid() {
		t.Fatalf("Alive = (%d, %v), want own pid", pid, ok)
	}

	lock.Release()
	if _, ok := lock.Alive(); ok {
		t.Fatal("released lock should not report alive")
	}
}

func TestInstanceLockNoPIDFile(t *testing.T) {
	lock := newTestLock(t)
	if _, ok := lock.Alive(); ok {
		t.Fatal("missing pid file should not report alive")
	}
	if err := lock.Terminate(); err == nil {
		t.Fatal("terminate without a pid file should fail")
	}
}

func TestInstanceLockStaleFileCleared(t *testing.T) {
	lock := newTestLock(t)
	if err := os.MkdirAll(filepath.Dir(lock.path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lock.path, []byte("not-a-pid"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := lock.Alive(); ok {
		t.Fatal("unreadable pid file should not report alive")
	}
}
