package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/samirrijal/signalmap/internal/adapters/postgres"
	"github.com/samirrijal/signalmap/internal/adapters/sqlite"
	"github.com/samirrijal/signalmap/internal/pkg/config"
	"github.com/samirrijal/signalmap/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|version>")
	}

	cfg, err := config.Load("signalmap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, "text")

	var m migrator
	switch cfg.Database.Driver {
	case "postgres":
		pm, err := postgres.NewMigrate(cfg.Database.DSN())
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		defer pm.Close()
		m = postgresMigrator{pm}
	case "sqlite":
		db, err := sqlite.Open(context.Background(), cfg.Database.SQLitePath)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		m = db
	}

	switch os.Args[1] {
	case "up":
		if err := m.MigrateUp(); err != nil {
			log.Fatalf("up: %v", err)
		}
	case "down":
		if err := m.MigrateDown(); err != nil {
			log.Fatalf("down: %v", err)
		}
	case "version":
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}

	v, dirty, err := m.MigrateVersion()
	if err != nil {
		log.Fatalf("version: %v", err)
	}
	fmt.Printf("%s schema version %d (dirty=%t)\n", cfg.Database.Driver, v, dirty)
}

// migrator is the common surface of the Postgres and SQLite migrations.
type migrator interface {
	MigrateUp() error
	MigrateDown() error
	MigrateVersion() (uint, bool, error)
}

type postgresMigrator struct {
	m *migrate.Migrate
}

func (p postgresMigrator) MigrateUp() error {
	if err := p.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (p postgresMigrator) MigrateDown() error {
	if err := p.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (p postgresMigrator) MigrateVersion() (uint, bool, error) {
	v, dirty, err := p.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
