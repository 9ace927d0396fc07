package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func seedEquipment(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - seeding equipment...")

	items := []struct {
		name        string
		description string
		stock       int
		status      string
	}{
		{"Oscilloscope", "Rigol DS1054Z, 4 channel", 3, "AVAILABLE"},
		{"DSLR Camera", "Canon EOS 250D with 18-55mm kit lens", 2, "AVAILABLE"},
		{"Soldering Station", "Hakko FX-888D", 5, "AVAILABLE"},
		{"Thermal Camera", "FLIR E8-XT", 1, "AVAILABLE"},
		{"Spectrum Analyzer", "Siglent SSA3021X", 1, "UNDER_MAINTENANCE"},
	}

	for _, item := range items {
		var existingID uint64
		err := db.QueryRow(ctx, "SELECT id FROM equipments WHERE name = $1", item.name).Scan(&existingID)
		if err == nil {
			continue
		}

		_, err = db.Exec(ctx,
			"INSERT INTO equipments (name, description, stock_count, status) VALUES ($1, $2, $3, $4)",
			item.name, item.description, item.stock, item.status,
		)
		if err != nil {
			return fmt.Errorf("failed to insert equipment %s: %w", item.name, err)
		}
	}
	return nil
}
