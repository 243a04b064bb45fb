// Package bootstrap opens the storage backends shared by the server and
// the command line tools.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/database"
	"github.com/stemsi/courseware-backend/internal/repository"
	"github.com/stemsi/courseware-backend/internal/repository/sqlite"
)

// OpenStores connects to the database selected by DB_DRIVER. The returned
// func releases the connection.
func OpenStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.Stores, func(), error) {
	switch cfg.DBDriver {
	case config.DriverPostgres, "":
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return repository.Stores{}, nil, err
		}
		return repository.NewStores(pool), pool.Close, nil
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLiteDSN, log)
		if err != nil {
			return repository.Stores{}, nil, err
		}
		return sqlite.NewStores(db), func() { _ = db.Close() }, nil
	default:
		return repository.Stores{}, nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}
