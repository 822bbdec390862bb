package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/database"
	"github.com/pageza/storefront-assistant/backend/internal/logging"
)

func main() {
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	dir := flag.String("dir", "", "Read migrations from this directory instead of the bundled ones")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	cfg := &config.Config{LogLevel: "info"}
	if dsn == "" {
		loaded, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("DATABASE_URL is not set and configuration failed to load: %v", err)
		}
		cfg = loaded
		dsn = database.PostgresDSN(cfg)
	}
	logger := logging.New(cfg)

	db, err := database.OpenSQL(dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	var migrations fs.FS = database.Migrations()
	if *dir != "" {
		migrations = os.DirFS(*dir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *rollback {
		name, err := database.RollbackLastMigration(ctx, db, migrations, logger)
		if errors.Is(err, database.ErrNothingToRollback) {
			fmt.Println("No migrations to rollback")
			return
		}
		if err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		fmt.Printf("Successfully rolled back migration: %s\n", name)
		return
	}

	applied, err := database.ApplySQLMigrations(ctx, db, migrations, logger)
	for _, name := range applied {
		fmt.Printf("Successfully applied migration: %s\n", name)
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	fmt.Println("All migrations applied successfully.")
}
