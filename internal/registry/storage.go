package registry

import (
	"fmt"
	"os"

	"flexdetect/internal/persistence/memory"
	"flexdetect/internal/persistence/postgres"
	"flexdetect/internal/persistence/sqlite"
	"flexdetect/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

// Supported storage drivers.
const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (session-local, default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to memory when unset, matching the session-local registry model.
//
//	FLEXDETECT_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	FLEXDETECT_SQLITE_PATH: path to sqlite file (default ./flexdetect.db)
//	FLEXDETECT_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore() (domain.PersistentStore, error) {
	driver := os.Getenv("FLEXDETECT_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageMemory)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("FLEXDETECT_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("FLEXDETECT_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
