package storage

import (
	"time"

	"remcon/pkg/protocol"
)

// Store defines the interface for agent roster persistence. Live session
// state is never persisted; the store only mirrors agent metadata so the
// roster survives controller restarts.
type Store interface {
	SaveAgent(metadata *protocol.AgentMetadata) error
	GetAgent(id string) (*protocol.AgentMetadata, error)
	GetAllAgents() ([]*protocol.AgentMetadata, error)
	MarkOffline(timeout time.Duration) error
	DeleteAgent(id string) error
	GetStats() (total, online, offline int, err error)
	Close() error
}
