package agent

import (
	"sort"
	"testing"
)

func TestListProcessesReturnsEntries(t *testing.T) {
	entries := listProcesses()
	if len(entries) == 0 {
		t.Fatal("expected at least one process")
	}

	for _, e := range entries {
		if e.Name == "" {
			t.Fatalf("entry with pid %d has empty name", e.PID)
		}
		if e.PID <= 0 {
			t.Fatalf("entry %q has invalid pid %d", e.Name, e.PID)
		}
	}
}

func TestListProcessesSorted(t *testing.T) {
	entries := listProcesses()

	sorted := sort.SliceIsSorted(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].PID < entries[j].PID
	})
	if !sorted {
		t.Error("process snapshot is not sorted by name then pid")
	}
}

func TestEndProcessUnknownPID(t *testing.T) {
	if err := endProcess(1<<31 - 2); err == nil {
		t.Error("expected error for nonexistent pid")
	}
}
