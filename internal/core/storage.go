package core

import (
	"fmt"
	"os"

	"github.com/Kira-pln/inventario-tubetes/internal/infra/persistence/csvfile"
	"github.com/Kira-pln/inventario-tubetes/internal/infra/persistence/memory"
	"github.com/Kira-pln/inventario-tubetes/internal/infra/persistence/postgres"
	"github.com/Kira-pln/inventario-tubetes/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageCSV      StorageDriver = "csv"      // legacy csv files (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to the csv driver when unset, which reads and writes the legacy
// file schema in place.
//
//	TUBETES_STORAGE_DRIVER: memory|csv|sqlite|postgres (default csv)
//	TUBETES_CSV_DIR: directory holding the csv files (default .)
//	TUBETES_SQLITE_PATH: path to sqlite file (default ./tubetes.db)
//	TUBETES_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("TUBETES_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageCSV)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageCSV:
		dir := os.Getenv("TUBETES_CSV_DIR")
		return csvfile.NewStore(dir, engine)
	case StorageSQLite:
		path := os.Getenv("TUBETES_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("TUBETES_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
