package storage

import (
	"path/filepath"
	"testing"
	"time"

	"remcon/pkg/config"
	"remcon/pkg/protocol"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "agents.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	if store == nil {
		t.Fatal("Store should not be nil")
	}
}

func TestSaveAndGetAgent(t *testing.T) {
	store := newTestStore(t)

	agent := &protocol.AgentMetadata{
		ID:          "agent-1",
		Hostname:    "test-host",
		OS:          "windows",
		Arch:        "amd64",
		IP:          "192.168.1.100",
		PublicIP:    "1.2.3.4",
		Status:      "online",
		ConnectedAt: time.Now(),
		LastSeen:    time.Now(),
	}

	if err := store.SaveAgent(agent); err != nil {
		t.Fatalf("Failed to save agent: %v", err)
	}

	retrieved, err := store.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("Failed to retrieve agent: %v", err)
	}

	if retrieved.ID != "agent-1" {
		t.Errorf("Expected ID 'agent-1', got '%s'", retrieved.ID)
	}
	if retrieved.Hostname != "test-host" {
		t.Errorf("Expected hostname 'test-host', got '%s'", retrieved.Hostname)
	}
	if retrieved.Status != "online" {
		t.Errorf("Expected status 'online', got '%s'", retrieved.Status)
	}
}

func TestSaveAgentUpsert(t *testing.T) {
	store := newTestStore(t)

	agent := &protocol.AgentMetadata{ID: "agent-1", Hostname: "old-host", Status: "online", LastSeen: time.Now()}
	if err := store.SaveAgent(agent); err != nil {
		t.Fatalf("Failed to save agent: %v", err)
	}

	agent.Hostname = "new-host"
	agent.Status = "offline"
	if err := store.SaveAgent(agent); err != nil {
		t.Fatalf("Failed to update agent: %v", err)
	}

	retrieved, err := store.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("Failed to retrieve agent: %v", err)
	}
	if retrieved.Hostname != "new-host" || retrieved.Status != "offline" {
		t.Errorf("Upsert did not apply: %+v", retrieved)
	}

	agents, err := store.GetAllAgents()
	if err != nil {
		t.Fatalf("Failed to list agents: %v", err)
	}
	if len(agents) != 1 {
		t.Errorf("Expected a single row after upsert, got %d", len(agents))
	}
}

func TestGetAllAgents(t *testing.T) {
	store := newTestStore(t)

	for i := 1; i <= 3; i++ {
		agent := &protocol.AgentMetadata{
			ID:       "agent-" + string(rune(48+i)),
			Hostname: "host-" + string(rune(48+i)),
			OS:       "linux",
			Status:   "online",
			LastSeen: time.Now(),
		}
		if err := store.SaveAgent(agent); err != nil {
			t.Fatalf("Failed to save agent %d: %v", i, err)
		}
	}

	agents, err := store.GetAllAgents()
	if err != nil {
		t.Fatalf("Failed to get all agents: %v", err)
	}

	if len(agents) != 3 {
		t.Errorf("Expected 3 agents, got %d", len(agents))
	}
}

func TestMarkOffline(t *testing.T) {
	store := newTestStore(t)

	stale := &protocol.AgentMetadata{ID: "stale", Status: "online", LastSeen: time.Now().Add(-10 * time.Minute)}
	fresh := &protocol.AgentMetadata{ID: "fresh", Status: "online", LastSeen: time.Now()}
	for _, a := range []*protocol.AgentMetadata{stale, fresh} {
		if err := store.SaveAgent(a); err != nil {
			t.Fatalf("Failed to save agent: %v", err)
		}
	}

	if err := store.MarkOffline(2 * time.Minute); err != nil {
		t.Fatalf("Failed to mark offline: %v", err)
	}

	got, err := store.GetAgent("stale")
	if err != nil {
		t.Fatalf("Failed to retrieve agent: %v", err)
	}
	if got.Status != "offline" {
		t.Errorf("Stale agent should be offline, got '%s'", got.Status)
	}

	got, err = store.GetAgent("fresh")
	if err != nil {
		t.Fatalf("Failed to retrieve agent: %v", err)
	}
	if got.Status != "online" {
		t.Errorf("Fresh agent should stay online, got '%s'", got.Status)
	}
}

func TestDeleteAgent(t *testing.T) {
	store := newTestStore(t)

	agent := &protocol.AgentMetadata{ID: "agent-1", Status: "online", LastSeen: time.Now()}
	if err := store.SaveAgent(agent); err != nil {
		t.Fatalf("Failed to save agent: %v", err)
	}

	if err := store.DeleteAgent("agent-1"); err != nil {
		t.Fatalf("Failed to delete agent: %v", err)
	}

	if _, err := store.GetAgent("agent-1"); err == nil {
		t.Error("Deleted agent should not be retrievable")
	}
}

func TestGetStats(t *testing.T) {
	store := newTestStore(t)

	agents := []*protocol.AgentMetadata{
		{ID: "online-1", Status: "online", LastSeen: time.Now()},
		{ID: "online-2", Status: "online", LastSeen: time.Now()},
		{ID: "offline-1", Status: "offline", LastSeen: time.Now()},
	}

	for _, agent := range agents {
		if err := store.SaveAgent(agent); err != nil {
			t.Fatalf("Failed to save agent: %v", err)
		}
	}

	total, online, offline, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if total != 3 {
		t.Errorf("Expected total 3, got %d", total)
	}
	if online != 2 {
		t.Errorf("Expected online 2, got %d", online)
	}
	if offline != 1 {
		t.Errorf("Expected offline 1, got %d", offline)
	}
}

func TestFactorySelectsBackend(t *testing.T) {
	cfg := config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "agents.db"),
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("Failed to create store via factory: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*SQLiteStore); !ok {
		t.Error("Expected a sqlite store")
	}

	if _, err := NewStore(config.DatabaseConfig{Type: "oracle"}); err == nil {
		t.Error("Unknown backend should be rejected")
	}
}
