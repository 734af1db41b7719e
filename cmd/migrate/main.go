package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/colepay/colepay/internal/migrations"
)

func main() {
	var down bool
	flag.BoolVar(&down, "down", false, "Roll back all migrations instead of applying them")
	flag.Parse()

	dbURL := os.Getenv("DB_SOURCE")
	if dbURL == "" {
		log.Fatal("DB_SOURCE environment variable is required")
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Fatalf("Unable to load migrations: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		log.Fatalf("Unable to initialize migrator: %v", err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}

	version, dirty, _ := m.Version()
	log.Printf("Migrations done (version=%d dirty=%v)", version, dirty)
}
