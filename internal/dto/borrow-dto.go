package dto

import (
	"time"

	"github.com/aarondl/null/v8"

	"lending-system/internal/entities"
)

type CreateBorrowDTO struct {
	EquipmentIDs       []uint64    `json:"equipment_ids" validate:"required,min=1,dive,gt=0"`
	RequestedStartTime time.Time   `json:"requested_start_time" validate:"required"`
	RequestedEndTime   time.Time   `json:"requested_end_time" validate:"required"`
	ClassID            null.Uint64 `json:"class_id"`
	GroupMateIDs       []uint64    `json:"group_mate_ids" validate:"omitempty,dive,gt=0"`
	DataRequested      bool        `json:"data_requested"`
}

type SubmitResultDTO struct {
	BorrowIDs     []uint64    `json:"borrow_ids"`
	BorrowGroupID null.String `json:"borrow_group_id"`
}

type ApproveBorrowDTO struct {
	// Approval normally copies the requested window; these override it.
	ApprovedStartTime null.Time `json:"approved_start_time"`
	ApprovedEndTime   null.Time `json:"approved_end_time"`
}

type ConfirmReturnDTO struct {
	ReturnCondition string      `json:"return_condition" validate:"required"`
	ReturnRemarks   null.String `json:"return_remarks"`
}

type DirectCheckoutDTO struct {
	EquipmentIDs []uint64    `json:"equipment_ids" validate:"required,min=1,dive,gt=0"`
	BorrowerID   uint64      `json:"borrower_id" validate:"required,gt=0"`
	ClassID      null.Uint64 `json:"class_id"`
	GroupMateIDs []uint64    `json:"group_mate_ids" validate:"omitempty,dive,gt=0"`
}

type TransitionResultDTO struct {
	UpdatedCount int64 `json:"updated_count"`
}

type BorrowDTO struct {
	ID          uint64      `json:"id"`
	EquipmentID uint64      `json:"equipment_id"`
	ClassID     null.Uint64 `json:"class_id"`
	BorrowerID  uint64      `json:"borrower_id"`

	RequestedStartTime time.Time `json:"requested_start_time"`
	RequestedEndTime   time.Time `json:"requested_end_time"`
	ApprovedStartTime  null.Time `json:"approved_start_time"`
	ApprovedEndTime    null.Time `json:"approved_end_time"`
	CheckoutTime       null.Time `json:"checkout_time"`
	ActualReturnTime   null.Time `json:"actual_return_time"`

	BorrowStatus  string      `json:"borrow_status"`
	BorrowGroupID null.String `json:"borrow_group_id"`

	ApprovedByStaffID null.Uint64 `json:"approved_by_staff_id"`
	ApprovedByFicID   null.Uint64 `json:"approved_by_fic_id"`

	ReturnCondition null.String `json:"return_condition"`
	ReturnRemarks   null.String `json:"return_remarks"`

	DataRequested bool `json:"data_requested"`
}

func BorrowDTOFromEntity(b *entities.Borrow) BorrowDTO {
	return BorrowDTO{
		ID:                 b.ID,
		EquipmentID:        b.EquipmentID,
		ClassID:            null.Uint64FromPtr(b.ClassID),
		BorrowerID:         b.BorrowerID,
		RequestedStartTime: b.RequestedStartTime,
		RequestedEndTime:   b.RequestedEndTime,
		ApprovedStartTime:  null.TimeFromPtr(b.ApprovedStartTime),
		ApprovedEndTime:    null.TimeFromPtr(b.ApprovedEndTime),
		CheckoutTime:       null.TimeFromPtr(b.CheckoutTime),
		ActualReturnTime:   null.TimeFromPtr(b.ActualReturnTime),
		BorrowStatus:       b.BorrowStatus,
		BorrowGroupID:      null.StringFromPtr(b.BorrowGroupID),
		ApprovedByStaffID:  null.Uint64FromPtr(b.ApprovedByStaffID),
		ApprovedByFicID:    null.Uint64FromPtr(b.ApprovedByFicID),
		ReturnCondition:    null.StringFromPtr(b.ReturnCondition),
		ReturnRemarks:      null.StringFromPtr(b.ReturnRemarks),
		DataRequested:      b.DataRequested,
	}
}
