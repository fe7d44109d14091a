package storage

import (
	"database/sql"
	"time"

	"remcon/pkg/protocol"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store interface using MySQL backend
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed store. The DSN must enable
// parseTime so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	store := &MySQLStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// initDB initializes the database schema
func (s *MySQLStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id VARCHAR(64) PRIMARY KEY,
		hostname VARCHAR(255),
		os VARCHAR(32),
		arch VARCHAR(32),
		ip VARCHAR(64),
		public_ip VARCHAR(64),
		status VARCHAR(16),
		connected_at DATETIME,
		last_seen DATETIME,
		first_seen DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_agents_last_seen (last_seen),
		INDEX idx_agents_status (status)
	)`

	_, err := s.db.Exec(schema)
	return err
}

// SaveAgent saves or updates an agent in the database
func (s *MySQLStore) SaveAgent(metadata *protocol.AgentMetadata) error {
	query := `
	INSERT INTO agents (id, hostname, os, arch, ip, public_ip, status, connected_at, last_seen, first_seen)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		hostname = VALUES(hostname),
		os = VALUES(os),
		arch = VALUES(arch),
		ip = VALUES(ip),
		public_ip = VALUES(public_ip),
		status = VALUES(status),
		connected_at = VALUES(connected_at),
		last_seen = VALUES(last_seen)
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
		metadata.LastSeen,
	)
	return err
}

// GetAgent retrieves an agent by ID
func (s *MySQLStore) GetAgent(id string) (*protocol.AgentMetadata, error) {
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
func (s *MySQLStore) GetAllAgents() ([]*protocol.AgentMetadata, error) {
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
			return nil, err
		}

		agents = append(agents, &metadata)
	}

	return agents, rows.Err()
}

// MarkOffline marks agents as offline if they haven't been seen recently
func (s *MySQLStore) MarkOffline(timeout time.Duration) error {
	cutoff := time.Now().Add(-timeout)
	query := `UPDATE agents SET status = 'offline' WHERE last_seen < ? AND status = 'online'`

	_, err := s.db.Exec(query, cutoff)
	return err
}

// DeleteAgent removes an agent from the database
func (s *MySQLStore) DeleteAgent(id string) error {
	_, err := s.db.Exec("DELETE FROM agents WHERE id = ?", id)
	return err
}

// GetStats returns roster counts by status
func (s *MySQLStore) GetStats() (total, online, offline int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'online' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'offline' THEN 1 ELSE 0 END), 0)
		FROM agents`).Scan(&total, &online, &offline)
	return
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
