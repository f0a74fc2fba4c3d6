// Package store opens the measurement repository for the configured driver.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/signalmap/internal/adapters/postgres"
	"github.com/samirrijal/signalmap/internal/adapters/sqlite"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/pkg/config"
)

// Store is an open measurement repository and the handle behind it.
type Store struct {
	Repo   ports.MeasurementRepository
	Driver string

	pg   *postgres.DB
	lite *sqlite.DB
}

// Open connects to the database named by cfg.Driver. With migrate set,
// pending schema migrations are applied first.
func Open(ctx context.Context, cfg config.DatabaseConfig, migrate bool) (*Store, error) {
	switch cfg.Driver {
	case "postgres":
		if migrate {
			if err := postgres.MigrateUp(cfg.DSN()); err != nil {
				return nil, err
			}
		}
		db, err := postgres.New(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		return &Store{Repo: postgres.NewMeasurementRepo(db), Driver: cfg.Driver, pg: db}, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := db.MigrateUp(); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &Store{Repo: sqlite.NewMeasurementRepo(db), Driver: cfg.Driver, lite: db}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// ReportPoolStats publishes connection pool gauges until ctx ends. SQLite
// has no pool to report and returns immediately.
func (s *Store) ReportPoolStats(ctx context.Context, interval time.Duration) {
	if s.pg != nil {
		s.pg.ReportPoolStats(ctx, interval)
	}
}

// Close releases the underlying handle.
func (s *Store) Close() {
	switch {
	case s.pg != nil:
		s.pg.Close()
	case s.lite != nil:
		if err := s.lite.Close(); err != nil {
			slog.Warn("close sqlite", "error", err)
		}
	}
}
