// Command migrate manages the schema of the postgres datastore backend.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/mockserver/internal/config"
	"github.com/example/mockserver/internal/datastore"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Uint("version", 0, "Target version (for force command)")
		dir     = flag.String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	)
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		fatal("load .env", err)
	}
	cfg, err := config.New()
	if err != nil {
		fatal("config error", err)
	}
	if cfg.DBAdapter != "postgres" {
		fatal("migrations only work with PostgreSQL", fmt.Errorf("current adapter: %s", cfg.DBAdapter))
	}

	migrationsDir := cfg.MigrationsDir
	if *dir != "" {
		migrationsDir = *dir
	}
	dsn := cfg.PostgresDSN

	switch *command {
	case "up":
		if err := datastore.Migrate(migrationsDir, dsn, *steps); err != nil {
			fatal("migration up failed", err)
		}
		fmt.Println("migrations applied")
	case "down":
		if *steps > 0 {
			err = datastore.Migrate(migrationsDir, dsn, -*steps)
		} else {
			err = datastore.MigrateDown(migrationsDir, dsn)
		}
		if err != nil {
			fatal("migration down failed", err)
		}
		fmt.Println("migrations rolled back")
	case "version":
		v, dirty, err := datastore.MigrationVersion(migrationsDir, dsn)
		if err != nil {
			fatal("failed to get version", err)
		}
		if dirty {
			fmt.Printf("database is in a dirty state (version %d)\n", v)
			os.Exit(1)
		}
		fmt.Printf("current migration version: %d\n", v)
	case "force":
		if *version == 0 {
			fatal("version required for force command", fmt.Errorf("use -version"))
		}
		if err := datastore.ForceMigrationVersion(migrationsDir, dsn, int(*version)); err != nil {
			fatal("force migration failed", err)
		}
		fmt.Printf("forced database to version %d\n", *version)
	default:
		fatal("unknown command", fmt.Errorf("%s (supported: up, down, version, force)", *command))
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
