// Package seeders populates a fresh database with demo users, classes and
// equipment. Every seeder is idempotent.
package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Run(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("running seeders...")

	if err := seedUsers(ctx, db); err != nil {
		return err
	}
	if err := seedClasses(ctx, db); err != nil {
		return err
	}
	if err := seedEquipment(ctx, db); err != nil {
		return err
	}

	log.Println("seeders finished")
	return nil
}
