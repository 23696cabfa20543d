package core

import (
	"context"
	"fmt"
	"time"

	"messagecore/internal/infra/persistence/memory"
	"messagecore/internal/infra/persistence/postgres"
	"messagecore/internal/infra/persistence/sqlite"
	"messagecore/internal/infra/persistence/sqlstore"
	"messagecore/pkg/domain"
)

// StorageDriver identifies a concrete record store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// SQLBacked reports whether the driver delegates queries to a database.
func (d StorageDriver) SQLBacked() bool {
	return d == StorageSQLite || d == StoragePostgres
}

// StorageOptions selects and configures a record store backend.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	// Now fills timestamps the SQL stores must set themselves. Optional.
	Now func() time.Time
}

// OpenStore opens the backend named by opts.Driver. An empty driver selects
// the in-memory store.
func OpenStore(ctx context.Context, opts StorageOptions) (domain.RecordStore, error) {
	var sqlOpts []sqlstore.Option
	if opts.Now != nil {
		sqlOpts = append(sqlOpts, sqlstore.WithNow(opts.Now))
	}
	switch opts.Driver {
	case "", StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(ctx, opts.SQLitePath, sqlOpts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, opts.PostgresDSN, sqlOpts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", opts.Driver)
	}
}
