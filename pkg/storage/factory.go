package storage

import (
	"fmt"

	"remcon/pkg/config"
)

// NewStore returns a concrete Store based on database configuration.
// An empty type falls back to sqlite.
func NewStore(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path)
	case "mysql":
		return NewMySQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
