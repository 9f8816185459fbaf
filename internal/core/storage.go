package core

import (
	"context"
	"fmt"

	"jobsdashboard/internal/config"
	"jobsdashboard/internal/infra/persistence/memory"
	"jobsdashboard/internal/infra/persistence/postgres"
	"jobsdashboard/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend from cfg. An empty driver defaults to
// sqlite. Backends holding a database handle implement io.Closer.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *RulesEngine) (PersistentStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
