package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"standsim/internal/infra/persistence/memory"
	"standsim/internal/infra/persistence/postgres"
	"standsim/internal/infra/persistence/sqlite"
	"standsim/pkg/domain"
)

// StorageDriver identifies a run history backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenRunStore opens the run history backend named by driver. An empty driver
// selects sqlite.
func OpenRunStore(ctx context.Context, driver StorageDriver, sqlitePath, postgresDSN string) (domain.RunStore, error) {
	if driver == "" {
		driver = StorageSQLite
	}
	switch StorageDriver(strings.ToLower(string(driver))) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(sqlitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, postgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenRunStoreFromEnv selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	STANDSIM_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	STANDSIM_SQLITE_PATH: path to sqlite file (default ./standsim.db)
//	STANDSIM_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenRunStoreFromEnv(ctx context.Context) (domain.RunStore, error) {
	return OpenRunStore(ctx,
		StorageDriver(os.Getenv("STANDSIM_STORAGE_DRIVER")),
		os.Getenv("STANDSIM_SQLITE_PATH"),
		os.Getenv("STANDSIM_POSTGRES_DSN"),
	)
}
