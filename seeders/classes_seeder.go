package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func seedClasses(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - seeding classes...")

	classes := []struct {
		code     string
		name     string
		ficEmail string
	}{
		{"CS-301", "Embedded Systems Lab", "a.moran@lending.local"},
		{"CS-442", "Robotics Practicum", "d.kim@lending.local"},
	}

	for _, c := range classes {
		var existingID uint64
		err := db.QueryRow(ctx, "SELECT id FROM classes WHERE code = $1", c.code).Scan(&existingID)
		if err == nil {
			continue
		}

		var ficID uint64
		err = db.QueryRow(ctx, "SELECT id FROM users WHERE email = $1 AND role = 'FACULTY'", c.ficEmail).Scan(&ficID)
		if err != nil {
			return fmt.Errorf("faculty-in-charge %s not found for class %s: %w", c.ficEmail, c.code, err)
		}

		_, err = db.Exec(ctx,
			"INSERT INTO classes (code, name, fic_id) VALUES ($1, $2, $3)",
			c.code, c.name, ficID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert class %s: %w", c.code, err)
		}
	}
	return nil
}
