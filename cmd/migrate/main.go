package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/liamcoop/visarules/catalogs"
	"github.com/liamcoop/visarules/internal/config"
	"github.com/liamcoop/visarules/internal/logger"
	"github.com/liamcoop/visarules/rules"
)

func main() {
	var configFile string
	var databaseURL string
	var migrationsPath string
	var command string

	flag.StringVar(&configFile, "config", "", "Path to a YAML config file (optional)")
	flag.StringVar(&databaseURL, "database", "", "Database URL (defaults to DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", "migrations", "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, version, force, seed, drop")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.SampleRate, os.Stdout); err != nil {
		logger.Fatal("failed to configure logging", "error", err)
	}

	if databaseURL == "" {
		databaseURL = cfg.Database.URL
	}
	if databaseURL == "" {
		logger.Fatal("database URL is required, use -database or DATABASE_URL")
	}

	if command == "seed" {
		if err := seed(context.Background(), databaseURL); err != nil {
			logger.Fatal("failed to seed catalogs", "error", err)
		}
		logger.Info("catalogs seeded", "count", len(catalogs.All()))
		return
	}

	if command == "drop" {
		if len(flag.Args()) < 1 {
			logger.Fatal("drop requires a catalog key: -command drop <catalog>")
		}
		if err := drop(context.Background(), databaseURL, flag.Arg(0)); err != nil {
			logger.Fatal("failed to drop catalog", "catalog", flag.Arg(0), "error", err)
		}
		logger.Info("catalog dropped", "catalog", flag.Arg(0))
		return
	}

	logger.Info("connecting to database", "migrations", migrationsPath)

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		logger.Fatal("failed to create migration instance", "error", err)
	}
	defer m.Close()

	switch command {
	case "up":
		logger.Info("running migrations up")
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to run, database is up to date")
			return
		}
		if err != nil {
			logger.Fatal("failed to run migrations", "error", err)
		}
		logger.Info("migrations completed")

	case "down":
		logger.Info("rolling back migrations")
		err = m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("failed to roll back migrations", "error", err)
		}
		logger.Info("rollback completed")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Fatal("failed to get version", "error", err)
		}
		logger.Info("current version", "version", version, "dirty", dirty)

	case "force":
		if len(flag.Args()) < 1 {
			logger.Fatal("force requires a version number: -command force <version>")
		}
		var version int
		if _, err := fmt.Sscanf(flag.Arg(0), "%d", &version); err != nil {
			logger.Fatal("invalid version number", "error", err)
		}
		if err := m.Force(version); err != nil {
			logger.Fatal("failed to force version", "error", err)
		}
		logger.Info("forced version", "version", version)

	default:
		logger.Fatal("unknown command, use: up, down, version, force, seed, drop", "command", command)
	}
}

func openStore(ctx context.Context, databaseURL string) (*rules.PostgresRuleStore, func(), error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return rules.NewPostgresRuleStore(db), func() { db.Close() }, nil
}

// seed writes the built-in catalogs into PostgreSQL, replacing their rules
func seed(ctx context.Context, databaseURL string) error {
	store, closeDB, err := openStore(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer closeDB()
	return catalogs.Seed(ctx, store)
}

// drop removes a catalog with its rules and derived fields. Running servers
// keep serving their compiled copy until restarted.
func drop(ctx context.Context, databaseURL, key string) error {
	store, closeDB, err := openStore(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer closeDB()
	return store.DeleteCatalog(ctx, key)
}
