package storage

import (
	"database/sql"
	"sync"
	"time"

	"remcon/pkg/logger"
	"remcon/pkg/protocol"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store interface using SQLite backend
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *logger.Logger
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{
		db:  db,
		log: logger.Get().With("component", "storage", "backend", "sqlite"),
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		hostname TEXT,
		os TEXT,
		arch TEXT,
		ip TEXT,
		public_ip TEXT,
		status TEXT,
		connected_at DATETIME,
		last_seen DATETIME,
		first_seen DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_agents_last_seen ON agents(last_seen DESC);
	CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveAgent saves or updates an agent in the database
func (s *SQLiteStore) SaveAgent(metadata *protocol.AgentMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO agents (id, hostname, os, arch, ip, public_ip, status, connected_at, last_seen, first_seen, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
		hostname = excluded.hostname,
		os = excluded.os,
		arch = excluded.arch,
		ip = excluded.ip,
		public_ip = excluded.public_ip,
		status = excluded.status,
		connected_at = excluded.connected_at,
		last_seen = excluded.last_seen,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query,
		metadata.ID,
		metadata.Hostname,
		metadata.OS,
		metadata.Arch,
		metadata.IP,
		metadata.PublicIP,
		metadata.Status,
		metadata.ConnectedAt,
		metadata.LastSeen,
		metadata.LastSeen, // first_seen only set on insert
	)
	return err
}

// GetAgent retrieves an agent by ID
func (s *SQLiteStore) GetAgent(id string) (*protocol.AgentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var metadata protocol.AgentMetadata

	query := `SELECT id, hostname, os, arch, ip, public_ip, status, connected_at, last_seen FROM agents WHERE id = ?`
	err := s.db.QueryRow(query, id).Scan(
		&metadata.ID,
		&metadata.Hostname,
		&metadata.OS,
		&metadata.Arch,
		&metadata.IP,
		&metadata.PublicIP,
		&metadata.Status,
		&metadata.ConnectedAt,
		&metadata.LastSeen,
	)

	if err != nil {
		return nil, err
	}

	return &metadata, nil
}

// GetAllAgents retrieves all agents, ordered by last_seen DESC
func (s *SQLiteStore) GetAllAgents() ([]*protocol.AgentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, hostname, os, arch, ip, public_ip, status, connected_at, last_seen
	          FROM agents
	          ORDER BY last_seen DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*protocol.AgentMetadata
	for rows.Next() {
		var metadata protocol.AgentMetadata

		err := rows.Scan(
			&metadata.ID,
			&metadata.Hostname,
			&metadata.OS,
			&metadata.Arch,
			&metadata.IP,
			&metadata.PublicIP,
			&metadata.Status,
			&metadata.ConnectedAt,
			&metadata.LastSeen,
		)
		if err != nil {
			s.log.ErrorWithErr("failed to scan agent row", err)
			continue
		}

		agents = append(agents, &metadata)
	}

	return agents, rows.Err()
}

// MarkOffline marks agents as offline if they haven't been seen recently
func (s *SQLiteStore) MarkOffline(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	query := `UPDATE agents SET status = 'offline', updated_at = CURRENT_TIMESTAMP
	          WHERE last_seen < ? AND status = 'online'`

	_, err := s.db.Exec(query, cutoff)
	return err
}

// DeleteAgent removes an agent from the database
func (s *SQLiteStore) DeleteAgent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM agents WHERE id = ?", id)
	return err
}

// GetStats returns roster counts by status
func (s *SQLiteStore) GetStats() (total, online, offline int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'online' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'offline' THEN 1 ELSE 0 END), 0)
		FROM agents`).Scan(&total, &online, &offline)
	return
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
