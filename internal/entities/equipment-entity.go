package entities

import "time"

type Equipment struct {
	ID          uint64     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StockCount  int        `json:"stock_count"`
	Status      string     `json:"status"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// EquipmentWithStats joins the stored row with the live borrow counters the
// derived status computation needs.
type EquipmentWithStats struct {
	Equipment
	ActiveBorrowCount    int        `json:"active_borrow_count"`
	NextReservationStart *time.Time `json:"next_reservation_start"`
}
