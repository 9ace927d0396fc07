package entities

import "time"

// Class is read-only here: class administration lives outside this service,
// the lending core only needs the faculty-in-charge for authorization.
type Class struct {
	ID        uint64     `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	FicID     uint64     `json:"fic_id"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
