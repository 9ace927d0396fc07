package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	fio      string
	email    string
	password string
	role     string
}

var defaultUsers = []seedUser{
	{"Department Staff", "staff@lending.local", "staff-password", "STAFF"},
	{"Prof. Alice Moran", "a.moran@lending.local", "faculty-password", "FACULTY"},
	{"Prof. Daniel Kim", "d.kim@lending.local", "faculty-password", "FACULTY"},
	{"Sam Student", "s.student@lending.local", "student-password", "STUDENT"},
	{"Nadia Osei", "n.osei@lending.local", "student-password", "STUDENT"},
}

func seedUsers(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - seeding users...")

	for _, u := range defaultUsers {
		var existingID uint64
		err := db.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", u.email).Scan(&existingID)
		if err == nil {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", u.email, err)
		}

		_, err = db.Exec(ctx,
			"INSERT INTO users (fio, email, password_hash, role) VALUES ($1, $2, $3, $4)",
			u.fio, u.email, string(hash), u.role,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", u.email, err)
		}
	}
	return nil
}
