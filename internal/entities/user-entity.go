package entities

import "time"

type User struct {
	ID           uint64     `json:"id"`
	Fio          string     `json:"fio"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}
