package agent

import "testing"

func TestMachineIDStable(t *testing.T) {
	gen := &machineIDGenerator{cacheDir: t.TempDir()}

	first, err := gen.MachineID()
	if err != nil {
		t.Fatalf("MachineID: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("id length = %d, want 32 hex chars", len(first))
	}

	second, err := gen.MachineID()
	if err != nil {
		t.Fatalf("MachineID (cached): %v", err)
	}
	if first != second {
		t.Errorf("id changed across calls: %q then %q", first, second)
	}
}

func TestMachineIDUsesCache(t *testing.T) {
	gen := &machineIDGenerator{cacheDir: t.TempDir()}

	if err := gen.writeCached("deadbeefdeadbeefdeadbeefdeadbeef"); err != nil {
		t.Fatalf("writeCached: %v", err)
	}

	id, err := gen.MachineID()
	if err != nil {
		t.Fatalf("MachineID: %v", err)
	}
	if id != "deadbeefdeadbeefdeadbeefdeadbeef" {
		t.Errorf("id = %q, want cached value", id)
	}
}
