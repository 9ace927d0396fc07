package dto

import (
	"time"

	"github.com/aarondl/null/v8"

	"lending-system/internal/entities"
)

type CreateEquipmentDTO struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	StockCount  int    `json:"stock_count" validate:"gte=0"`
	Status      string `json:"status" validate:"omitempty,oneof=AVAILABLE RESERVED BORROWED UNDER_MAINTENANCE DEFECTIVE OUT_OF_COMMISSION"`
}

type UpdateEquipmentDTO struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	StockCount  int    `json:"stock_count" validate:"gte=0"`
	Status      string `json:"status" validate:"required,oneof=AVAILABLE RESERVED BORROWED UNDER_MAINTENANCE DEFECTIVE OUT_OF_COMMISSION ARCHIVED"`
}

type EquipmentDTO struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StockCount  int    `json:"stock_count"`
	// Status as stored; DerivedStatus as computed from live stock.
	Status               string    `json:"status"`
	DerivedStatus        string    `json:"derived_status"`
	ActiveBorrowCount    int       `json:"active_borrow_count"`
	NextReservationStart null.Time `json:"next_reservation_start"`
}

func EquipmentDTOFromStats(e *entities.EquipmentWithStats, derived string) EquipmentDTO {
	return EquipmentDTO{
		ID:                   e.ID,
		Name:                 e.Name,
		Description:          e.Description,
		StockCount:           e.StockCount,
		Status:               e.Status,
		DerivedStatus:        derived,
		ActiveBorrowCount:    e.ActiveBorrowCount,
		NextReservationStart: null.TimeFromPtr(e.NextReservationStart),
	}
}

type AvailabilityCheckDTO struct {
	EquipmentID       uint64      `json:"equipment_id"`
	Available         bool        `json:"available"`
	UnavailableReason null.String `json:"unavailable_reason"`
}

type AvailableUnitsDTO struct {
	EquipmentID    uint64    `json:"equipment_id"`
	RangeStart     time.Time `json:"range_start"`
	RangeEnd       time.Time `json:"range_end"`
	AvailableUnits int       `json:"available_units"`
}
