package main

import (
	"context"
	"flag"
	"log"

	"lending-system/migrations"
	"lending-system/pkg/config"
	"lending-system/pkg/database/postgresql"
	"lending-system/seeders"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply pending migrations before seeding")
	flag.Parse()

	cfg := config.New()
	log.Println("using DSN:", cfg.Postgres.DSN)

	dbPool := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbPool.Close()

	if *migrate {
		if err := migrations.Up(dbPool); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}

	if err := seeders.Run(context.Background(), dbPool); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
}
